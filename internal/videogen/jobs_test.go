package videogen

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisaas/backend/internal/models"
)

type generatorStub struct {
	mu      sync.Mutex
	calls   []Request
	video   models.GeneratedVideo
	err     error
	release chan struct{}
}

func (g *generatorStub) Generate(ctx context.Context, userID string, req Request) (models.GeneratedVideo, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()

	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return models.GeneratedVideo{}, ctx.Err()
		}
	}
	return g.video, g.err
}

type jobStoreStub struct {
	mu        sync.Mutex
	running   []string
	succeeded map[string]string
	failed    map[string]string
	messages  map[string]string
}

func newJobStoreStub() *jobStoreStub {
	return &jobStoreStub{
		succeeded: make(map[string]string),
		failed:    make(map[string]string),
		messages:  make(map[string]string),
	}
}

func (s *jobStoreStub) MarkRunning(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = append(s.running, jobID)
	return nil
}

func (s *jobStoreStub) MarkSucceeded(ctx context.Context, jobID, videoID, modelUsed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded[jobID] = videoID + "|" + modelUsed
	return nil
}

func (s *jobStoreStub) MarkFailed(ctx context.Context, jobID, kind, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[jobID] = kind
	s.messages[jobID] = message
	return nil
}

func (s *jobStoreStub) snapshot() (succeeded, failed map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	succeeded = make(map[string]string, len(s.succeeded))
	for k, v := range s.succeeded {
		succeeded[k] = v
	}
	failed = make(map[string]string, len(s.failed))
	for k, v := range s.failed {
		failed[k] = v
	}
	return succeeded, failed
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdownQueue(t *testing.T, q *JobQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = q.Shutdown(ctx)
}

func TestJobQueueSuccess(t *testing.T) {
	generator := &generatorStub{video: models.GeneratedVideo{ID: "video-1", ModelUsed: ModelVeo3}}
	store := newJobStoreStub()
	q := NewJobQueue(generator, store, JobQueueConfig{QueueSize: 1, Workers: 1, Timeout: time.Second}, discardLogger())
	defer shutdownQueue(t, q)

	job := models.GenerationJob{ID: "job-1", UserID: "user-1", Prompt: "a cat", AspectRatio: "9:16"}
	require.NoError(t, q.Enqueue(context.Background(), job))

	require.Eventually(t, func() bool {
		succeeded, _ := store.snapshot()
		return succeeded["job-1"] != ""
	}, time.Second, 5*time.Millisecond)

	succeeded, _ := store.snapshot()
	assert.Equal(t, "video-1|"+ModelVeo3, succeeded["job-1"])

	generator.mu.Lock()
	defer generator.mu.Unlock()
	require.Len(t, generator.calls, 1)
	assert.Equal(t, "9:16", generator.calls[0].AspectRatio)
}

func TestJobQueueRecordsFailureKind(t *testing.T) {
	generator := &generatorStub{err: &ExhaustedError{QuotaSeen: true, Last: errors.New("RESOURCE_EXHAUSTED")}}
	store := newJobStoreStub()
	q := NewJobQueue(generator, store, JobQueueConfig{QueueSize: 1, Workers: 1, Timeout: time.Second}, discardLogger())
	defer shutdownQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), models.GenerationJob{ID: "job-2", Prompt: "a"}))

	require.Eventually(t, func() bool {
		_, failed := store.snapshot()
		return failed["job-2"] != ""
	}, time.Second, 5*time.Millisecond)

	_, failed := store.snapshot()
	assert.Equal(t, KindQuotaExceeded.String(), failed["job-2"])
}

func TestJobQueueFailsJobsWithoutGenerator(t *testing.T) {
	store := newJobStoreStub()
	q := NewJobQueue(nil, store, JobQueueConfig{QueueSize: 1, Workers: 1, Timeout: time.Second}, discardLogger())
	defer shutdownQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), models.GenerationJob{ID: "job-orphan", Prompt: "a"}))

	require.Eventually(t, func() bool {
		_, failed := store.snapshot()
		return failed["job-orphan"] != ""
	}, time.Second, 5*time.Millisecond)

	_, failed := store.snapshot()
	assert.Equal(t, KindOther.String(), failed["job-orphan"])
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, ErrClientUnavailable.Error(), store.messages["job-orphan"])
	assert.Empty(t, store.running)
}

func TestJobQueueRejectsAfterShutdown(t *testing.T) {
	q := NewJobQueue(&generatorStub{}, newJobStoreStub(), JobQueueConfig{}, discardLogger())
	shutdownQueue(t, q)

	err := q.Enqueue(context.Background(), models.GenerationJob{ID: "late"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestJobQueueShutdownFailsQueuedJobs(t *testing.T) {
	generator := &generatorStub{release: make(chan struct{})}
	store := newJobStoreStub()
	q := NewJobQueue(generator, store, JobQueueConfig{QueueSize: 4, Workers: 1, Timeout: time.Second}, discardLogger())

	require.NoError(t, q.Enqueue(context.Background(), models.GenerationJob{ID: "in-flight"}))
	require.Eventually(t, func() bool {
		generator.mu.Lock()
		defer generator.mu.Unlock()
		return len(generator.calls) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), models.GenerationJob{ID: "waiting"}))

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- q.Shutdown(ctx)
	}()
	require.Eventually(t, func() bool { return q.ctx.Err() != nil }, time.Second, time.Millisecond)
	close(generator.release)
	require.NoError(t, <-done)

	succeeded, failed := store.snapshot()
	assert.Contains(t, succeeded, "in-flight")
	assert.Equal(t, KindOther.String(), failed["waiting"])
}
