package videogen

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aisaas/backend/internal/models"
)

type startResult struct {
	op  *Operation
	err error
}

type clientStub struct {
	mu        sync.Mutex
	starts    map[string]startResult
	started   []string
	polls     []*Operation
	pollErr   error
	pollCalls int
	download  []byte
	dlErr     error
	dlCalls   int
}

func (c *clientStub) Start(ctx context.Context, model, prompt string, opts Options) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, model)
	res, ok := c.starts[model]
	if !ok {
		return nil, errors.New("unexpected model " + model)
	}
	return res.op, res.err
}

func (c *clientStub) Poll(ctx context.Context, op *Operation) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollCalls++
	if c.pollErr != nil {
		return nil, c.pollErr
	}
	if len(c.polls) == 0 {
		return op, nil
	}
	next := c.polls[0]
	c.polls = c.polls[1:]
	return next, nil
}

func (c *clientStub) Download(ctx context.Context, video Video) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dlCalls++
	return c.download, c.dlErr
}

func (c *clientStub) startedModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.started...)
}

type storageStub struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	err     error
}

func (s *storageStub) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return "static/uploads/videos/" + name, nil
}

func (s *storageStub) Delete(ctx context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, location)
	return nil
}

type recorderStub struct {
	mu     sync.Mutex
	videos []models.GeneratedVideo
	err    error
}

func (r *recorderStub) Create(ctx context.Context, video models.GeneratedVideo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.videos = append(r.videos, video)
	return nil
}

func doneOp(videos ...Video) *Operation {
	return &Operation{Name: "operations/done", Done: true, Videos: videos}
}
