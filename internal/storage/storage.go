// Package storage persists generated video files.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aisaas/backend/internal/config"
)

// Storage is implemented by every backend.
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// New builds the backend selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg config.Config) (Storage, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal, "":
		return NewLocalStorage(cfg.Storage.LocalDir)
	case config.StorageS3:
		return NewS3Storage(ctx, cfg.ObjectStore)
	case config.StorageGCS:
		return NewGCSStorage(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func objectKey(prefix, name string) string {
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return ""
	}
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}
