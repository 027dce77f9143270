package videogen

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt indicates the request carried no prompt after trimming.
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrNoVideos indicates a completed operation returned an empty result list.
	ErrNoVideos = errors.New("video generation returned no videos")
	// ErrWaitTimeout indicates the operation did not complete within the configured maximum wait.
	ErrWaitTimeout = errors.New("timed out waiting for video generation")
	// ErrClientUnavailable indicates the generation client is not configured.
	ErrClientUnavailable = errors.New("video generation client unavailable")
	// ErrQueueClosed indicates the job queue no longer accepts work.
	ErrQueueClosed = errors.New("generation queue closed")
)

const startFailedMessage = "failed to start video generation"

// AttemptError wraps an unclassified failure raised while starting generation on a model.
// It aborts the candidate loop.
type AttemptError struct {
	Model string
	Err   error
}

func (e *AttemptError) Error() string {
	return e.Err.Error()
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ExhaustedError reports that every candidate model failed with a recoverable error.
type ExhaustedError struct {
	Attempts     []string
	QuotaSeen    bool
	NotFoundSeen bool
	Last         error
}

// Kind reports the outcome with quota taking precedence over model-unavailable.
func (e *ExhaustedError) Kind() Kind {
	switch {
	case e.QuotaSeen:
		return KindQuotaExceeded
	case e.NotFoundSeen:
		return KindModelUnavailable
	default:
		return KindOther
	}
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil || e.Last.Error() == "" {
		return startFailedMessage
	}
	return e.Last.Error()
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// OperationError carries the error attached to a completed operation.
type OperationError struct {
	Operation string
	Code      int
	Status    string
	Message   string
}

func (e *OperationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "operation failed"
	}
	if e.Status != "" {
		return fmt.Sprintf("%s: %s", e.Status, msg)
	}
	return msg
}

func operationErrorFrom(name string, raw map[string]any) *OperationError {
	opErr := &OperationError{Operation: name}
	if msg, ok := raw["message"].(string); ok {
		opErr.Message = msg
	}
	if status, ok := raw["status"].(string); ok {
		opErr.Status = status
	}
	switch code := raw["code"].(type) {
	case float64:
		opErr.Code = int(code)
	case int:
		opErr.Code = code
	case int32:
		opErr.Code = int(code)
	case int64:
		opErr.Code = int(code)
	}
	return opErr
}
