package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/corvid-labs/capsule/internal/jobqueue"
	"go.opentelemetry.io/otel/trace"
)

// ExampleJobPayload is the payload for ExampleHandler: a message to log and
// an optional delay to demonstrate a long-running job.
type ExampleJobPayload struct {
	Message string `json:"message"`
	DelayMs *int   `json:"delay_ms,omitempty"`
}

// ExampleHandler logs a message and optionally sleeps. It exists to
// exercise the queue end to end without any external dependency.
type ExampleHandler struct{}

// NewExampleHandler builds an ExampleHandler factory for registration.
func NewExampleHandler() jobqueue.Handler { return ExampleHandler{} }

func (ExampleHandler) Kind() string { return "example" }

func (ExampleHandler) Run(ctx context.Context, raw json.RawMessage, handle jobqueue.Handle, span trace.Span) error {
	var payload ExampleJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("example: decode payload: %w", err)
	}

	slog.InfoContext(ctx, "processing example job", "message", payload.Message)

	if payload.DelayMs != nil {
		select {
		case <-time.After(time.Duration(*payload.DelayMs) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		slog.InfoContext(ctx, "finished sleeping", "delay_ms", *payload.DelayMs)
	}

	slog.InfoContext(ctx, "example job completed")
	return nil
}
