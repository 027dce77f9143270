package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes generated videos to a directory on disk.
type LocalStorage struct {
	dir string
}

// NewLocalStorage ensures dir exists and returns a storage rooted at it.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("local storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create video directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Save writes the content to dir/name and returns the file path.
func (s *LocalStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("local storage: empty file name")
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(f, contextReader{ctx: ctx, r: r}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	return filepath.ToSlash(path), nil
}

// Delete removes a file previously returned by Save. Missing files are ignored.
func (s *LocalStorage) Delete(ctx context.Context, location string) error {
	path := filepath.Join(s.dir, filepath.Base(filepath.FromSlash(location)))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
