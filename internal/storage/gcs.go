package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"

	"github.com/aisaas/backend/internal/config"
)

// GCSStorage stores generated videos in a Google Cloud Storage bucket.
type GCSStorage struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a client using application default credentials.
func NewGCSStorage(ctx context.Context, cfg config.GCSConfig) (*GCSStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs storage: bucket is required")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Save streams the video into the bucket and returns its gs:// URI.
func (s *GCSStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key := objectKey(s.prefix, name)
	if key == "" {
		return "", errors.New("gcs storage: empty key")
	}

	obj := s.client.Bucket(s.bucket).Object(key)
	open := func(ctx context.Context) objectWriter {
		writer := obj.NewWriter(ctx)
		writer.ContentType = contentType(name)
		return writer
	}
	if err := uploadObject(ctx, open, r); err != nil {
		return "", fmt.Errorf("gcs storage %s: %w", key, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

type objectWriter interface {
	io.Writer
	Close() error
}

// uploadObject copies r into a writer bound to a cancellable context. The object is only
// committed on Close, so a failed copy cancels the context first to abandon the upload.
func uploadObject(ctx context.Context, open func(context.Context) objectWriter, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := open(ctx)
	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		_ = writer.Close()
		return fmt.Errorf("upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	return nil
}

// Delete removes an object previously returned by Save.
func (s *GCSStorage) Delete(ctx context.Context, location string) error {
	key := strings.TrimPrefix(location, fmt.Sprintf("gs://%s/", s.bucket))
	if key == "" {
		return errors.New("gcs storage: empty key")
	}

	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("gcs storage delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
