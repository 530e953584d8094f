package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow-rpa/deskflow/internal/platform/config"
)

func TestNew_BuildsUsableLogger(t *testing.T) {
	log := New(config.LoggerConfig{Level: "debug", Format: "console", OutputPath: "stdout"})
	require.NotNil(t, log)
	log.Info("hello", "key", "value")
	log.Warn("careful")
	log.Error("broke", "err", "boom")
}

func TestNop_DoesNotPanic(t *testing.T) {
	log := Nop()
	require.NotNil(t, log)
	log.Debug("debug msg")
	log.Info("info msg")
}

func TestWithFields_MergesAndIsImmutable(t *testing.T) {
	log := Nop()
	child := log.WithFields(map[string]interface{}{"a": 1})
	grandchild := child.WithFields(map[string]interface{}{"b": 2})

	zl := grandchild.(*ZapLogger)
	assert.Equal(t, 1, zl.fields["a"])
	assert.Equal(t, 2, zl.fields["b"])

	// The parent's field map must not have been mutated by the child's WithFields call.
	parent := log.(*ZapLogger)
	assert.NotContains(t, parent.fields, "a")
}

func TestWithContext_ExtractsKnownKeys(t *testing.T) {
	log := Nop()
	ctx := context.WithValue(context.Background(), CtxRecordingID, "rec-123")

	withCtx := log.WithContext(ctx).(*ZapLogger)
	assert.Equal(t, "rec-123", withCtx.fields[string(CtxRecordingID)])
	assert.NotContains(t, withCtx.fields, string(CtxScheduleID))
}
