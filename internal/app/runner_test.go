package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
	recmodel "github.com/deskflow-rpa/deskflow/internal/recording/model"
	"github.com/deskflow-rpa/deskflow/internal/replay"
	"github.com/deskflow-rpa/deskflow/internal/replay/simsink"
	schedmodel "github.com/deskflow-rpa/deskflow/internal/schedule/model"
	"github.com/deskflow-rpa/deskflow/internal/storage"
)

func TestReplayRunner_Run_Success(t *testing.T) {
	store := newTestStore(t)
	rec := newCompletedRecording(t)
	require.NoError(t, store.SaveRecording(context.Background(), rec))

	sink := simsink.New()
	engine := replay.NewEngine(sink, clock.New(), nil)
	runner := NewReplayRunner(store, engine, nil)

	sched, err := schedmodel.New(uuid.UUID(rec.ID()), schedmodel.NewManualTrigger(), 1, 5*time.Second)
	require.NoError(t, err)

	executed, total, err := runner.Run(context.Background(), sched)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, 1, executed)
	// ForegroundWindow, the action's TypeText, then the restoring Activate.
	require.Len(t, sink.Calls, 3)
}

func TestReplayRunner_Run_RecordingNotFound(t *testing.T) {
	store := newTestStore(t)
	sink := simsink.New()
	engine := replay.NewEngine(sink, clock.New(), nil)
	runner := NewReplayRunner(store, engine, nil)

	sched, err := schedmodel.New(uuid.New(), schedmodel.NewManualTrigger(), 1, 5*time.Second)
	require.NoError(t, err)

	_, _, err = runner.Run(context.Background(), sched)
	require.Error(t, err)
}

func TestReplayRunner_Run_NotExecutable(t *testing.T) {
	store := newTestStore(t)
	rec, err := recmodel.New("incomplete recording", recmodel.CaptureMetadata{})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	canonical, err := storage.Canonicalize(rec.ToDTO())
	require.NoError(t, err)
	require.NoError(t, rec.Complete(canonical, storage.Hash(canonical)))
	require.NoError(t, store.SaveRecording(context.Background(), rec))

	sink := simsink.New()
	engine := replay.NewEngine(sink, clock.New(), nil)
	runner := NewReplayRunner(store, engine, nil)

	sched, err := schedmodel.New(uuid.UUID(rec.ID()), schedmodel.NewManualTrigger(), 1, 5*time.Second)
	require.NoError(t, err)

	_, _, err = runner.Run(context.Background(), sched)
	require.Error(t, err)
}
