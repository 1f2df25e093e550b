package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-123")
	assert.Equal(t, "trace-123", TraceID(ctx))
	assert.Empty(t, TraceID(context.Background()))
}

func TestFromContext_AddsTraceField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithTraceID(context.Background(), "abc")
	FromContext(ctx, base).Info("catalog.test")
	FromContext(context.Background(), base).Info("catalog.untraced")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "abc", entries[0].ContextMap()["trace_id"])
		_, ok := entries[1].ContextMap()["trace_id"]
		assert.False(t, ok)
	}
}

func TestSet_ReplacesGlobal(t *testing.T) {
	nop := zap.NewNop()
	Set(nop)
	assert.Same(t, nop, L())
	assert.NotNil(t, S())
}
