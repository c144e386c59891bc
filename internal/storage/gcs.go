package storage

import (
	"context"
	"fmt"
	"path"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob"
)

// GCSStore writes artifacts to a Google Cloud Storage bucket.
// Credentials come from application default credentials.
type GCSStore struct {
	bucket     *blob.Bucket
	bucketName string
	prefix     string
}

// NewGCSStore opens a GCS bucket.
func NewGCSStore(bucketName, prefix string) (*GCSStore, error) {
	bucket, err := blob.OpenBucket(context.Background(), "gs://"+bucketName)
	if err != nil {
		return nil, fmt.Errorf("open gcs bucket %s: %w", bucketName, err)
	}
	return &GCSStore{bucket: bucket, bucketName: bucketName, prefix: prefix}, nil
}

func (s *GCSStore) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

// Exists reports whether an object is already present at key.
func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, s.objectKey(key))
	if err != nil {
		return false, fmt.Errorf("check existence of %s: %w", key, err)
	}
	return exists, nil
}

// Write stores an object at key.
func (s *GCSStore) Write(ctx context.Context, key string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, s.objectKey(key), nil)
	if err != nil {
		return fmt.Errorf("open writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", key, err)
	}
	return nil
}

// ReadAll returns the full content stored at key.
func (s *GCSStore) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, s.objectKey(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// URI returns a gs:// URI for the given key.
func (s *GCSStore) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucketName, s.objectKey(key))
}

// Close releases the bucket handle.
func (s *GCSStore) Close() error {
	return s.bucket.Close()
}
