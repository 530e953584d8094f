// Package scheduler implements the Scheduler control loop of spec.md §4.8:
// a single cooperative task evaluating triggers and dispatching
// non-overlapping Replay Engine executions per schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
	schedulemodel "github.com/deskflow-rpa/deskflow/internal/schedule/model"
)

// tickInterval is the spec.md §4.8 cadence: "a single cooperative task
// running this loop at a 1-second cadence".
const tickInterval = time.Second

// Runner invokes the Replay Engine for a schedule's linked Recording and
// reports the outcome. The Scheduler is replay-engine-agnostic; main.go
// wires the real implementation backed by replay.Engine + storage.
type Runner interface {
	Run(ctx context.Context, schedule *schedulemodel.Schedule) (actionsExecuted, totalActions int, err error)
}

// Store is the persistence the scheduler needs (app.Store implements it on
// top of storage.Index), expressed as an interface so tests can substitute
// an in-memory fake.
type Store interface {
	ActiveScheduleIDs(ctx context.Context) ([]uuid.UUID, error)
	LoadSchedule(ctx context.Context, id uuid.UUID) (*schedulemodel.Schedule, error)
	SaveSchedule(ctx context.Context, s *schedulemodel.Schedule) error
	RecordExecutionStart(ctx context.Context, s *schedulemodel.Schedule, start time.Time, totalActions int) (executionID uuid.UUID, err error)
	RecordExecutionEnd(ctx context.Context, executionID uuid.UUID, end time.Time, success bool, errMsg string, actionsExecuted int) error
}

// Scheduler runs the tick loop described in spec.md §4.8.
type Scheduler struct {
	store        Store
	runner       Runner
	clock        clock.Clock
	log          logger.Logger
	processStart time.Time

	mu       sync.Mutex
	running  map[uuid.UUID]int // schedule_id -> in-flight execution count
	notifyCh chan uuid.UUID
}

// New builds a Scheduler. processStart anchors Startup trigger computation.
func New(store Store, runner Runner, clk clock.Clock, log logger.Logger, processStart time.Time) *Scheduler {
	return &Scheduler{
		store:        store,
		runner:       runner,
		clock:        clk,
		log:          log,
		processStart: processStart,
		running:      make(map[uuid.UUID]int),
		notifyCh:     make(chan uuid.UUID, 64),
	}
}

// Notify wakes the scheduler for a non-polled trigger (Hotkey, FileWatcher,
// Idle) firing for scheduleID (spec.md §4.8: "fired by their respective
// observers calling scheduler.notify(schedule_id)").
func (s *Scheduler) Notify(scheduleID uuid.UUID) {
	select {
	case s.notifyCh <- scheduleID:
	default:
		if s.log != nil {
			s.log.Warn("scheduler: notify channel full, dropping notification", "schedule_id", scheduleID)
		}
	}
}

// Run blocks, executing the tick loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		case scheduleID := <-s.notifyCh:
			s.dispatchByID(ctx, scheduleID)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.NowWall()
	ids, err := s.store.ActiveScheduleIDs(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Error("scheduler: listing active schedules", "error", err)
		}
		return
	}
	for _, id := range ids {
		sched, err := s.store.LoadSchedule(ctx, id)
		if err != nil {
			if s.log != nil {
				s.log.Error("scheduler: loading schedule", "schedule_id", id, "error", err)
			}
			continue
		}
		if !sched.Trigger().Polled() {
			continue
		}
		if sched.Eligible(now) {
			s.spawn(ctx, sched)
		}
	}
}

func (s *Scheduler) dispatchByID(ctx context.Context, id uuid.UUID) {
	sched, err := s.store.LoadSchedule(ctx, id)
	if err != nil {
		if s.log != nil {
			s.log.Error("scheduler: loading notified schedule", "schedule_id", id, "error", err)
		}
		return
	}
	if !sched.Enabled() || sched.Status() != schedulemodel.StatusActive {
		return
	}
	if sched.RunningCount() >= sched.MaxParallelExecutions() {
		return
	}
	s.spawn(ctx, sched)
}

// spawn dispatches one execution for sched, honoring execution_timeout by
// cancelling the runner's context if it runs too long (spec.md §4.8).
func (s *Scheduler) spawn(ctx context.Context, sched *schedulemodel.Schedule) {
	sched.BeginExecution()
	sched.MarkRunning()
	if err := s.store.SaveSchedule(ctx, sched); err != nil && s.log != nil {
		s.log.Error("scheduler: saving schedule before dispatch", "schedule_id", sched.ID(), "error", err)
	}

	start := s.clock.NowWall()
	executionID, err := s.store.RecordExecutionStart(ctx, sched, start, 0)
	if err != nil && s.log != nil {
		s.log.Error("scheduler: recording execution start", "schedule_id", sched.ID(), "error", err)
	}

	go func() {
		runCtx, cancel := context.WithTimeout(ctx, sched.ExecutionTimeout())
		defer cancel()

		actionsExecuted, totalActions, runErr := s.runner.Run(runCtx, sched)

		errMsg := ""
		success := runErr == nil
		if runErr != nil {
			errMsg = runErr.Error()
			if runCtx.Err() == context.DeadlineExceeded {
				errMsg = "Timeout: " + errMsg
			}
		}

		end := s.clock.NowWall()
		if err := s.store.RecordExecutionEnd(ctx, executionID, end, success, errMsg, actionsExecuted); err != nil && s.log != nil {
			s.log.Error("scheduler: recording execution end", "execution_id", executionID, "error", err)
		}

		if err := sched.CompleteExecution(end, s.processStart, success); err != nil && s.log != nil {
			s.log.Error("scheduler: completing schedule execution", "schedule_id", sched.ID(), "error", err)
		}
		sched.MarkIdleAgain()
		_ = totalActions
		if err := s.store.SaveSchedule(ctx, sched); err != nil && s.log != nil {
			s.log.Error("scheduler: saving schedule after dispatch", "schedule_id", sched.ID(), "error", err)
		}
	}()
}
