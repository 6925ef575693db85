package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_LevelFallback(t *testing.T) {
	l := New("not-a-level")
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))

	l = New("debug", "console")
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}

func TestFromContext_AddsConnectionID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	ctx := WithConnectionID(context.Background(), "conn-1")
	FromContext(ctx, base).Info("joined")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "conn-1", entries[0].ContextMap()["connection_id"])
	}
}

func TestFromContext_NoFieldsReturnsBase(t *testing.T) {
	base := Nop()
	assert.Same(t, base, FromContext(context.Background(), base))
}
