package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestStartSpanEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug")

	ctx := WithLogger(context.Background(), logger)
	ctx, span := StartSpan(ctx, "videogen.generate")
	FromContext(ctx).Info("inside span")
	span.End()

	if TraceIDFromContext(ctx) == "" || stringValue(ctx, spanIDKey) == "" {
		t.Fatal("expected trace and span ids on context")
	}

	line, err := buf.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read log line: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["span_name"] != "videogen.generate" {
		t.Fatalf("expected span name on log entry, got %v", entry["span_name"])
	}
	if entry["trace_id"] == "" || entry["trace_id"] == nil {
		t.Fatal("expected trace id on log entry")
	}
}

func TestSpanFailLogsError(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "info"))

	_, span := StartSpan(ctx, "videogen.generate")
	span.Fail(errors.New("quota exceeded"))
	span.End()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "ERROR" || entry["error"] != "quota exceeded" {
		t.Fatalf("expected failed span entry, got %v", entry)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
}
