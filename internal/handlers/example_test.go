package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestExampleHandler_Kind(t *testing.T) {
	assert.Equal(t, "example", NewExampleHandler().Kind())
}

func TestExampleHandler_RunsWithoutDelay(t *testing.T) {
	h := NewExampleHandler()
	payload, _ := json.Marshal(ExampleJobPayload{Message: "hello"})

	start := time.Now()
	err := h.Run(context.Background(), payload, nil, trace.SpanFromContext(context.Background()))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestExampleHandler_HonorsContextCancellationDuringDelay(t *testing.T) {
	h := NewExampleHandler()
	delay := 5000
	payload, _ := json.Marshal(ExampleJobPayload{Message: "slow", DelayMs: &delay})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.Run(ctx, payload, nil, trace.SpanFromContext(context.Background()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExampleHandler_RejectsMalformedPayload(t *testing.T) {
	h := NewExampleHandler()
	err := h.Run(context.Background(), json.RawMessage(`not json`), nil, trace.SpanFromContext(context.Background()))
	assert.Error(t, err)
}
