// Package storage persists converter output under slash-separated keys
// relative to the output root ("image/camera00/00000000.png").
//
// The local file system is the primary store. S3 and Google Cloud Storage
// stores mirror the same key space into a bucket, so a conversion can run
// next to the data and publish its result in one pass.
package storage

import (
	"context"
	"mime"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/cubeconv/pkg/config"
	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

// Store persists objects by key. Implementations must be safe for
// concurrent Put calls since write tasks run in parallel.
type Store interface {
	// Name identifies the store in logs and errors.
	Name() string
	// Prepare makes sure the given key prefixes can receive objects.
	Prepare(ctx context.Context, prefixes []string) error
	// Put stores data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte) error
	// Close releases clients held by the store.
	Close() error
}

// New builds the store described by cfg. The local store under outputRoot
// comes first unless cfg.MirrorOnly is set; bucket mirrors follow.
func New(ctx context.Context, cfg config.StorageConfig, outputRoot string, logger *zap.Logger) (Store, error) {
	var stores []Store
	if !cfg.MirrorOnly {
		stores = append(stores, NewLocalStore(outputRoot))
	}

	if cfg.S3Bucket != "" {
		s3Store, err := NewS3Store(ctx, S3Config{
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
			Region: cfg.S3Region,
		})
		if err != nil {
			return nil, err
		}
		stores = append(stores, s3Store)
	}

	if cfg.GCSBucket != "" {
		gcsStore, err := NewGCSStore(ctx, GCSConfig{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.GCSPrefix,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			closeAll(stores)
			return nil, err
		}
		stores = append(stores, gcsStore)
	}

	switch len(stores) {
	case 0:
		return nil, errors.New(errors.ErrorTypeConfig, "no output store configured")
	case 1:
		logger.Info("output store ready", zap.String("store", stores[0].Name()))
		return stores[0], nil
	default:
		m := NewMultiStore(stores...)
		logger.Info("output store ready", zap.String("store", m.Name()))
		return m, nil
	}
}

// ObjectKey joins prefix and key into a bucket object name.
func ObjectKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// ContentType guesses the MIME type of key from its extension.
func ContentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func closeAll(stores []Store) {
	for _, s := range stores {
		_ = s.Close()
	}
}

func putError(err error, store, key string) *errors.Error {
	return errors.Wrap(err, errors.ErrorTypeOutput, "failed to store object").
		WithDetail("store", store).
		WithDetail("key", key)
}
