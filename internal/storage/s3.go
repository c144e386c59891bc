package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob"
)

// S3Store writes artifacts to an S3-compatible bucket. Credentials come
// from the standard AWS environment variables or shared config.
type S3Store struct {
	bucket     *blob.Bucket
	bucketName string
	prefix     string
}

// NewS3Store opens an S3 bucket. A non-empty endpoint targets a
// compatible service such as B2, R2 or MinIO and forces path-style
// addressing.
func NewS3Store(bucketName, prefix, endpoint, region string) (*S3Store, error) {
	params := url.Values{}
	if region != "" {
		params.Set("region", region)
	}
	if endpoint != "" {
		params.Set("endpoint", endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	bucketURL := "s3://" + bucketName
	if len(params) > 0 {
		bucketURL += "?" + params.Encode()
	}

	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open s3 bucket %s: %w", bucketName, err)
	}
	return &S3Store{bucket: bucket, bucketName: bucketName, prefix: prefix}, nil
}

func (s *S3Store) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

// Exists reports whether an object is already present at key.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, s.objectKey(key))
	if err != nil {
		return false, fmt.Errorf("check existence of %s: %w", key, err)
	}
	return exists, nil
}

// Write stores an object at key.
func (s *S3Store) Write(ctx context.Context, key string, data []byte) error {
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
func (s *S3Store) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, s.objectKey(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// URI returns an s3:// URI for the given key.
func (s *S3Store) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucketName, s.objectKey(key))
}

// Close releases the bucket handle.
func (s *S3Store) Close() error {
	return s.bucket.Close()
}
