package videogen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIConfig configures the Google generative media client.
type GenAIConfig struct {
	APIKey   string
	Backend  string
	Project  string
	Location string
}

// GenAIClient implements Client on top of google.golang.org/genai.
type GenAIClient struct {
	client *genai.Client
}

// NewGenAIClient constructs a process-wide client. Backend is "gemini" (API key) or "vertex".
func NewGenAIClient(ctx context.Context, cfg GenAIConfig) (*GenAIClient, error) {
	cc := &genai.ClientConfig{}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "gemini":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("genai: api key is required for the gemini backend")
		}
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case "vertex":
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	default:
		return nil, fmt.Errorf("genai: unknown backend %q", cfg.Backend)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIClient{client: client}, nil
}

// Start submits a generation request. Upstream errors are returned unwrapped so they can be
// classified structurally.
func (c *GenAIClient) Start(ctx context.Context, model, prompt string, opts Options) (*Operation, error) {
	if c == nil || c.client == nil {
		return nil, ErrClientUnavailable
	}

	op, err := c.client.Models.GenerateVideos(ctx, model, prompt, nil, &genai.GenerateVideosConfig{
		AspectRatio: opts.AspectRatio,
	})
	if err != nil {
		return nil, err
	}
	return fromGenAI(op), nil
}

// Poll refreshes the state of an operation.
func (c *GenAIClient) Poll(ctx context.Context, op *Operation) (*Operation, error) {
	if c == nil || c.client == nil {
		return nil, ErrClientUnavailable
	}

	raw, ok := op.ref.(*genai.GenerateVideosOperation)
	if !ok || raw == nil {
		raw = &genai.GenerateVideosOperation{Name: op.Name}
	}

	updated, err := c.client.Operations.GetVideosOperation(ctx, raw, nil)
	if err != nil {
		return nil, err
	}
	return fromGenAI(updated), nil
}

// Download fetches the payload of a generated video.
func (c *GenAIClient) Download(ctx context.Context, video Video) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, ErrClientUnavailable
	}

	generated, ok := video.ref.(*genai.GeneratedVideo)
	if !ok || generated == nil {
		generated = &genai.GeneratedVideo{Video: &genai.Video{URI: video.URI, MIMEType: video.MIMEType}}
	}

	return c.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(generated), nil)
}

func fromGenAI(op *genai.GenerateVideosOperation) *Operation {
	if op == nil {
		return &Operation{}
	}

	out := &Operation{Name: op.Name, Done: op.Done, ref: op}
	if len(op.Error) > 0 {
		out.Err = operationErrorFrom(op.Name, op.Error)
	}
	if op.Response == nil {
		return out
	}

	for _, generated := range op.Response.GeneratedVideos {
		if generated == nil || generated.Video == nil {
			continue
		}
		out.Videos = append(out.Videos, Video{
			URI:      generated.Video.URI,
			MIMEType: generated.Video.MIMEType,
			Bytes:    generated.Video.VideoBytes,
			ref:      generated,
		})
	}
	return out
}

var _ Client = (*GenAIClient)(nil)
