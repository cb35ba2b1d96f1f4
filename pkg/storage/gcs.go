package storage

import (
	"context"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

// GCSConfig configures a Google Cloud Storage mirror.
type GCSConfig struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
}

// GCSStore mirrors objects into a GCS bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSStore creates a client using the credentials file when given and
// application default credentials otherwise.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "gcs bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client").
			WithDetail("bucket", cfg.Bucket)
	}

	return &GCSStore{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Name implements Store.
func (s *GCSStore) Name() string { return "gs://" + ObjectKey(s.name, s.prefix) }

// Prepare implements Store. Buckets have no directories.
func (s *GCSStore) Prepare(context.Context, []string) error { return nil }

// Put writes data to the prefixed object name.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(ObjectKey(s.prefix, key)).NewWriter(ctx)
	w.ContentType = ContentType(key)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return putError(err, s.Name(), key)
	}
	if err := w.Close(); err != nil {
		return putError(err, s.Name(), key)
	}
	return nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
