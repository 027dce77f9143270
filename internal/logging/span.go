package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times a unit of work such as one video generation. Its logger carries the trace and
// span identifiers so nested log lines can be correlated.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan derives a child span from ctx. The returned context carries the span's logger.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(slog.String("span_id", spanID), slog.String("span_name", name))
	if parent := stringValue(ctx, spanIDKey); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithLogger(ctx, logger)
	ctx = withString(ctx, spanIDKey, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Fail records err as the outcome of the span. The last non-nil error wins.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits the completion entry, at error level when the span failed.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Error("span failed", elapsed, slog.String("error", s.err.Error()))
		return
	}
	s.logger.Info("span completed", elapsed)
}
