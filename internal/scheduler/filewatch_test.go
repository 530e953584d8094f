package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
	schedulemodel "github.com/deskflow-rpa/deskflow/internal/schedule/model"
)

func TestFileWatchObserver_NotifiesOnWrite(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewFileWatcherTrigger("watched"))
	store.schedules[sched.ID()] = sched

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	path := filepath.Join(t.TempDir(), "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("initial"), 0o600))

	obs, err := NewFileWatchObserver(s, nil)
	require.NoError(t, err)
	require.NoError(t, obs.Watch(path, sched.ID()))
	go obs.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o600))

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("file write never notified the scheduler")
	}
}

func TestFileWatchObserver_UnwatchStopsNotifications(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewFileWatcherTrigger("watched"))
	store.schedules[sched.ID()] = sched

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("initial"), 0o600))

	obs, err := NewFileWatchObserver(s, nil)
	require.NoError(t, err)
	require.NoError(t, obs.Watch(path, sched.ID()))
	require.NoError(t, obs.Unwatch(path))
	go obs.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o600))

	select {
	case <-s.notifyCh:
		t.Fatal("unwatched path should not notify")
	case <-time.After(200 * time.Millisecond):
	}
}
