package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	recmodel "github.com/deskflow-rpa/deskflow/internal/recording/model"
	schedmodel "github.com/deskflow-rpa/deskflow/internal/schedule/model"
	"github.com/deskflow-rpa/deskflow/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	local, err := storage.NewLocalStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	idx, err := storage.OpenIndex(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return NewStore(idx, local, "")
}

func newCompletedRecording(t *testing.T) *recmodel.Recording {
	t.Helper()
	rec, err := recmodel.New("test recording", recmodel.CaptureMetadata{Host: "host-1"})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	action := recmodel.NewKeyboardTextAction("hello", recmodel.InputDirect)
	action.Timeout = 5 * time.Second
	require.NoError(t, rec.AppendAction(action))
	canonical, err := storage.Canonicalize(rec.ToDTO())
	require.NoError(t, err)
	require.NoError(t, rec.Complete(canonical, storage.Hash(canonical)))
	return rec
}

func TestStore_SaveAndLoadRecording(t *testing.T) {
	s := newTestStore(t)
	rec := newCompletedRecording(t)

	require.NoError(t, s.SaveRecording(context.Background(), rec))

	loaded, err := s.LoadRecording(context.Background(), uuid.UUID(rec.ID()))
	require.NoError(t, err)
	require.Equal(t, rec.Name(), loaded.Name())
	require.Len(t, loaded.Actions(), 1)
}

func TestStore_LoadRecording_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadRecording(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestStore_SaveAndLoadSchedule_PreservesMaxParallelAndTimeout(t *testing.T) {
	s := newTestStore(t)
	sched, err := schedmodel.New(uuid.New(), schedmodel.NewManualTrigger(), 3, 90*time.Second)
	require.NoError(t, err)
	require.NoError(t, sched.Activate(time.Now().UTC(), time.Now().UTC()))

	require.NoError(t, s.SaveSchedule(context.Background(), sched))

	loaded, err := s.LoadSchedule(context.Background(), sched.ID())
	require.NoError(t, err)
	require.Equal(t, 3, loaded.MaxParallelExecutions())
	require.Equal(t, 90*time.Second, loaded.ExecutionTimeout())
	require.Equal(t, sched.RecordingID(), loaded.RecordingID())
}

func TestStore_LoadSchedule_FindsInactiveSchedule(t *testing.T) {
	s := newTestStore(t)
	sched, err := schedmodel.New(uuid.New(), schedmodel.NewManualTrigger(), 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.SaveSchedule(context.Background(), sched))

	loaded, err := s.LoadSchedule(context.Background(), sched.ID())
	require.NoError(t, err)
	require.Equal(t, schedmodel.StatusInactive, loaded.Status())

	ids, err := s.ActiveScheduleIDs(context.Background())
	require.NoError(t, err)
	require.Empty(t, ids)
}
