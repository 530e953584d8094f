package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled_ReturnsUsableNoopTracer(t *testing.T) {
	tel, err := New(Config{ServiceName: "deskflowd-test", TracingEnabled: false})
	require.NoError(t, err)
	require.NotNil(t, tel.Tracer())
	require.NotNil(t, tel.Meter())

	ctx, span := tel.StartSpan(context.Background(), "op")
	require.NotNil(t, ctx)
	span.End()

	counter, err := tel.Meter().Int64Counter("noop.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, tel.Close())
}

func TestNew_Enabled_WritesSpansToOutput(t *testing.T) {
	var buf bytes.Buffer
	tel, err := New(Config{ServiceName: "deskflowd-test", TracingEnabled: true, Output: &buf})
	require.NoError(t, err)

	_, span := tel.StartSpan(context.Background(), "recording.start")
	span.End()

	counter, err := tel.Meter().Int64Counter("recordings.started")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, tel.Close())
	assert.Contains(t, buf.String(), "recording.start")
}
