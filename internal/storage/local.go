package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrPresignUnsupported = errors.New("presigned urls are not supported by local storage")

// LocalDir keeps objects as plain files under a root directory, keyed by
// their slash-separated object key. It stands in for MinIO on single-host
// setups where the API and worker share a volume.
type LocalDir struct {
	root string
}

func NewLocalDir(root string) (*LocalDir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("output directory is required")
	}
	return &LocalDir{root: root}, nil
}

func (d *LocalDir) Root() string {
	return d.root
}

func (d *LocalDir) EnsureBucket(_ context.Context) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

func (d *LocalDir) WriteObject(ctx context.Context, objectKey string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := d.resolve(objectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("write object %s: %w", objectKey, err)
	}
	return nil
}

func (d *LocalDir) ReadObject(ctx context.Context, objectKey string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	fullPath, err := d.resolve(objectKey)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, objectKey)
		}
		return nil, "", fmt.Errorf("read object %s: %w", objectKey, err)
	}

	contentType := mime.TypeByExtension(path.Ext(objectKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func (d *LocalDir) PresignedGetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

func (d *LocalDir) resolve(objectKey string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(objectKey))
	if clean == "/" {
		return "", errors.New("object key is required")
	}
	return filepath.Join(d.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
