package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

type recordingWriter struct {
	ctx              context.Context
	buf              bytes.Buffer
	closed           bool
	cancelledAtClose bool
	closeErr         error
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *recordingWriter) Close() error {
	w.closed = true
	w.cancelledAtClose = w.ctx.Err() != nil
	return w.closeErr
}

func TestUploadObjectCommitsOnSuccess(t *testing.T) {
	var writer *recordingWriter
	open := func(ctx context.Context) objectWriter {
		writer = &recordingWriter{ctx: ctx}
		return writer
	}

	if err := uploadObject(context.Background(), open, strings.NewReader("video-bytes")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !writer.closed {
		t.Fatal("expected writer to be closed")
	}
	if writer.cancelledAtClose {
		t.Fatal("context cancelled before a successful close")
	}
	if writer.buf.String() != "video-bytes" {
		t.Fatalf("unexpected payload %q", writer.buf.String())
	}
}

func TestUploadObjectAbandonsFailedCopy(t *testing.T) {
	readErr := errors.New("connection reset")
	var writer *recordingWriter
	open := func(ctx context.Context) objectWriter {
		writer = &recordingWriter{ctx: ctx}
		return writer
	}

	err := uploadObject(context.Background(), open, iotest.ErrReader(readErr))
	if !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}
	if !writer.closed {
		t.Fatal("expected writer to be closed")
	}
	if !writer.cancelledAtClose {
		t.Fatal("expected context to be cancelled before close so the partial object is discarded")
	}
}

func TestUploadObjectReportsFinalizeError(t *testing.T) {
	closeErr := errors.New("precondition failed")
	open := func(ctx context.Context) objectWriter {
		return &recordingWriter{ctx: ctx, closeErr: closeErr}
	}

	err := uploadObject(context.Background(), open, strings.NewReader("x"))
	if !errors.Is(err, closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if !strings.Contains(err.Error(), "finalize") {
		t.Fatalf("expected finalize context in %q", err.Error())
	}
}
