package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	logger := slog.Default().With("request_id", "req-1")
	ctx := ContextWithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected the attached logger back, got %v", got)
	}
}

func TestFromContext_Missing(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil for a bare context, got %v", got)
	}
	if got := FromContext(nil); got != nil {
		t.Fatalf("expected nil for a nil context, got %v", got)
	}
}

func TestContextWithLogger_NilInputs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatalf("expected the context unchanged for a nil logger")
	}
}
