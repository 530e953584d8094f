package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
	schedulemodel "github.com/deskflow-rpa/deskflow/internal/schedule/model"
)

type fakeStore struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*schedulemodel.Schedule
	activeIDs []uuid.UUID
	saved     []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{schedules: make(map[uuid.UUID]*schedulemodel.Schedule)}
}

func (s *fakeStore) ActiveScheduleIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.activeIDs, nil
}

func (s *fakeStore) LoadSchedule(ctx context.Context, id uuid.UUID) (*schedulemodel.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return nil, assert.AnError
	}
	return sched, nil
}

func (s *fakeStore) SaveSchedule(ctx context.Context, sched *schedulemodel.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.ID()] = sched
	s.saved = append(s.saved, sched.ID())
	return nil
}

func (s *fakeStore) RecordExecutionStart(ctx context.Context, sched *schedulemodel.Schedule, start time.Time, totalActions int) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (s *fakeStore) RecordExecutionEnd(ctx context.Context, executionID uuid.UUID, end time.Time, success bool, errMsg string, actionsExecuted int) error {
	return nil
}

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
	err   error
}

func newFakeRunner() *fakeRunner { return &fakeRunner{done: make(chan struct{}, 8)} }

func (r *fakeRunner) Run(ctx context.Context, sched *schedulemodel.Schedule) (int, int, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	r.done <- struct{}{}
	return 1, 1, r.err
}

func newActiveSchedule(t *testing.T, trigger schedulemodel.TriggerCondition) *schedulemodel.Schedule {
	sched, err := schedulemodel.New(uuid.New(), trigger, 1, time.Minute)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, sched.Activate(now, now))
	return sched
}

func TestScheduler_Tick_SpawnsEligiblePolledSchedule(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewStartupTrigger(0))
	store.schedules[sched.ID()] = sched
	store.activeIDs = []uuid.UUID{sched.ID()}

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	s.tick(context.Background())

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("runner was never invoked")
	}
}

func TestScheduler_Tick_SkipsUnpolledTriggers(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewManualTrigger())
	store.schedules[sched.ID()] = sched
	store.activeIDs = []uuid.UUID{sched.ID()}

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	s.tick(context.Background())

	select {
	case <-runner.done:
		t.Fatal("manual trigger should never be polled by tick")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_DispatchByID_RunsEnabledActiveSchedule(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewHotkeyTrigger("ctrl+alt+t"))
	store.schedules[sched.ID()] = sched

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	s.dispatchByID(context.Background(), sched.ID())

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("runner was never invoked")
	}
}

func TestScheduler_DispatchByID_SkipsDisabledSchedule(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewHotkeyTrigger("ctrl+alt+t"))
	sched.SetEnabled(false)
	store.schedules[sched.ID()] = sched

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	s.dispatchByID(context.Background(), sched.ID())

	select {
	case <-runner.done:
		t.Fatal("disabled schedule should not dispatch")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_DispatchByID_SkipsWhenAtMaxParallel(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewHotkeyTrigger("ctrl+alt+t"))
	sched.BeginExecution() // running count now 1, max is 1
	store.schedules[sched.ID()] = sched

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	s.dispatchByID(context.Background(), sched.ID())

	select {
	case <-runner.done:
		t.Fatal("schedule already at max parallel should not dispatch")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_Notify_QueuesForDispatch(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewHotkeyTrigger("ctrl+alt+t"))
	store.schedules[sched.ID()] = sched

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Notify(sched.ID())

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("notified schedule was never dispatched")
	}
}

func TestScheduler_Spawn_RecordsSuccessAndResetsRunningCount(t *testing.T) {
	store := newFakeStore()
	runner := newFakeRunner()
	sched := newActiveSchedule(t, schedulemodel.NewHotkeyTrigger("ctrl+alt+t"))
	store.schedules[sched.ID()] = sched

	s := New(store, runner, clock.New(), nil, time.Now().UTC())
	s.spawn(context.Background(), sched)

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("runner was never invoked")
	}

	assert.Eventually(t, func() bool {
		return sched.RunningCount() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sched.TotalExecutions())
}
