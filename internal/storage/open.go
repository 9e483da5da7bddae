package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dunamismax/chartflow/internal/config"
)

// Backend is what both binaries need from artifact storage: the worker
// writes charts, the API reads or links to them.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	ReadObject(ctx context.Context, objectKey string) ([]byte, string, error)
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// Open builds the configured backend and makes sure its bucket exists.
// The local backend keeps artifacts under localDir.
func Open(ctx context.Context, cfg config.StorageConfig, localDir string) (Backend, error) {
	var backend Backend
	switch cfg.Backend {
	case "", "minio":
		client, err := NewClient(Config{
			Endpoint: cfg.Endpoint,
			Access:   cfg.AccessKey,
			Secret:   cfg.SecretKey,
			Bucket:   cfg.Bucket,
			UseSSL:   cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		backend = client
	case "local":
		dir, err := NewLocalDir(localDir)
		if err != nil {
			return nil, err
		}
		backend = dir
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure %s storage: %w", cfg.Backend, err)
	}
	return backend, nil
}
