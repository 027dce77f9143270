package videogen

import (
	"context"
	"io"

	"github.com/aisaas/backend/internal/models"
)

// Options carries per-request generation settings.
type Options struct {
	AspectRatio string
}

// Video references a single generated item.
type Video struct {
	URI      string
	MIMEType string
	// Bytes is populated when the service returns the payload inline.
	Bytes []byte

	ref any
}

// Operation is a handle to an in-progress or completed generation job.
type Operation struct {
	Name   string
	Done   bool
	Videos []Video
	// Err is set when a completed operation reports an upstream failure.
	Err *OperationError

	ref any
}

// Client is the external video-generation service.
type Client interface {
	Start(ctx context.Context, model, prompt string, opts Options) (*Operation, error)
	Poll(ctx context.Context, op *Operation) (*Operation, error)
	Download(ctx context.Context, video Video) ([]byte, error)
}

// AssetStorage persists generated files and returns a location for them.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// VideoRecorder persists metadata rows for generated videos.
type VideoRecorder interface {
	Create(ctx context.Context, video models.GeneratedVideo) error
}
