// Package storage fetches raw dataset extracts from S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"crm_assistant_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxExtractSize bounds a single extract download.
const MaxExtractSize = 512 << 20

// ErrExtractTooLarge is returned when an object exceeds MaxExtractSize.
var ErrExtractTooLarge = errors.New("extract exceeds maximum size")

// MinIOFetcher reads dataset extracts from one bucket.
type MinIOFetcher struct {
	client *minio.Client
	bucket string
}

// NewMinIOFetcher creates a fetcher for the configured dataset bucket.
func NewMinIOFetcher(cfg config.StorageConfig) (*MinIOFetcher, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOFetcher{client: client, bucket: cfg.GetDatasetBucket()}, nil
}

// CheckBucket verifies the dataset bucket exists. Unlike upload buckets it is
// never created: an absent bucket means the extract job is misconfigured.
func (f *MinIOFetcher) CheckBucket(ctx context.Context) error {
	exists, err := f.client.BucketExists(ctx, f.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("dataset bucket %s does not exist", f.bucket)
	}
	return nil
}

// Fetch downloads the object at key.
func (f *MinIOFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := f.client.GetObject(ctx, f.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(io.LimitReader(obj, MaxExtractSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if len(data) > MaxExtractSize {
		return nil, fmt.Errorf("object %s: %w", key, ErrExtractTooLarge)
	}
	return data, nil
}
