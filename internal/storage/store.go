// Package storage abstracts the destination store for delivered
// imagery artifacts. Keys are slash-separated paths; a given key
// always refers to the same artifact, which is what makes transfers
// idempotent.
package storage

import (
	"context"
	"fmt"
)

// ArtifactStore is the uniform contract over object stores and the
// local filesystem.
type ArtifactStore interface {
	// Exists reports whether an artifact is already present at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Write stores an artifact at key, replacing any existing object.
	Write(ctx context.Context, key string, data []byte) error

	// ReadAll returns the full content stored at key.
	ReadAll(ctx context.Context, key string) ([]byte, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	Backend string // "local" | "gcs" | "s3"

	// Local filesystem
	LocalDir string

	// Object stores
	Bucket     string
	S3Endpoint string // custom endpoint for B2/MinIO/R2
	S3Region   string

	// Common key prefix within the bucket or local dir.
	Prefix string
}

// New creates a storage backend based on configuration.
func New(cfg Config) (ArtifactStore, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("Bucket required for gcs backend")
		}
		return NewGCSStore(cfg.Bucket, cfg.Prefix)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("Bucket required for s3 backend")
		}
		return NewS3Store(cfg.Bucket, cfg.Prefix, cfg.S3Endpoint, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
