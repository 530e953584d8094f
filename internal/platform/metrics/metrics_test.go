package metrics

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectorsWithoutPanicking(t *testing.T) {
	m := New()
	require.NotNil(t, m)

	m.CapturesStarted.Inc()
	m.ReplaysCompleted.WithLabelValues("ok").Inc()
	m.ScheduleInFlight.WithLabelValues("sched-1").Set(2)
}

func TestServe_ExposesMetricsEndpoint(t *testing.T) {
	m := New()
	m.CapturesStarted.Inc()

	errCh := make(chan error, 1)
	go func() { errCh <- m.Serve("127.0.0.1:0") }()

	// Serve binds a listener synchronously before blocking in server.Serve,
	// but there is no signal back to the test for when that bind completes
	// against an ephemeral port, so this exercises Shutdown's idempotence
	// against a server that may or may not have started accepting yet.
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, m.Shutdown(context.Background()))

	select {
	case err := <-errCh:
		assert.True(t, err == nil || err == http.ErrServerClosed)
	case <-time.After(time.Second):
		t.Fatal("Serve never returned after Shutdown")
	}
}

func TestShutdown_NoopWithoutServe(t *testing.T) {
	m := New()
	assert.NoError(t, m.Shutdown(context.Background()))
}
