package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajitpratap0/cubeconv/pkg/errors"
)

const (
	defaultUploadPartSize    = 5 * 1024 * 1024 // 5MB
	defaultUploadConcurrency = 4
)

// S3Config configures an S3 mirror.
type S3Config struct {
	Bucket      string
	Prefix      string
	Region      string
	PartSize    int64
	Concurrency int
}

// Uploader is the part of manager.Uploader the store uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store mirrors objects into an S3 bucket.
type S3Store struct {
	bucket   string
	prefix   string
	uploader Uploader
}

// NewS3Store loads the default AWS configuration and creates a multipart
// uploader for the bucket.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration").
			WithDetail("bucket", cfg.Bucket)
	}

	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = defaultUploadPartSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}

	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = concurrency
	})
	return NewS3StoreWithUploader(cfg.Bucket, cfg.Prefix, uploader), nil
}

// NewS3StoreWithUploader creates a store around an existing uploader.
func NewS3StoreWithUploader(bucket, prefix string, uploader Uploader) *S3Store {
	return &S3Store{bucket: bucket, prefix: prefix, uploader: uploader}
}

// Name implements Store.
func (s *S3Store) Name() string { return "s3://" + ObjectKey(s.bucket, s.prefix) }

// Prepare implements Store. Buckets have no directories.
func (s *S3Store) Prepare(context.Context, []string) error { return nil }

// Put uploads data under the prefixed key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(ObjectKey(s.prefix, key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType(key)),
	})
	if err != nil {
		return putError(err, s.Name(), key)
	}
	return nil
}

// Close implements Store.
func (s *S3Store) Close() error { return nil }
