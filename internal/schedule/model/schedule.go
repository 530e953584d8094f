// Package model implements the Schedule aggregate and its TriggerCondition
// variants (spec.md §3), generalizing the teacher's cron-driven schedule
// aggregate (internal/schedule/domain/model/schedule.go) from workflow
// scheduling to Recording replay scheduling.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the Schedule lifecycle state of spec.md §3.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
	StatusRunning  Status = "running"
	StatusComplete Status = "completed"
	StatusFailed   Status = "failed"
)

// Schedule is the aggregate root binding a Recording to a TriggerCondition.
type Schedule struct {
	id          uuid.UUID
	recordingID uuid.UUID
	status      Status
	enabled     bool
	trigger     TriggerCondition

	maxParallelExecutions int
	executionTimeout      time.Duration

	createdAt time.Time
	updatedAt time.Time

	nextExecution *time.Time
	lastExecution *time.Time

	totalExecutions      int
	successfulExecutions int

	runningCount int // in-memory only; not persisted
}

// New creates a Schedule in status=inactive, enabled=true.
func New(recordingID uuid.UUID, trigger TriggerCondition, maxParallel int, timeout time.Duration) (*Schedule, error) {
	if maxParallel < 1 {
		return nil, fmt.Errorf("schedule: max_parallel_executions must be >= 1")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("schedule: execution_timeout must be positive")
	}
	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Schedule{
		id:                    uuid.New(),
		recordingID:           recordingID,
		status:                StatusInactive,
		enabled:               true,
		trigger:               trigger,
		maxParallelExecutions: maxParallel,
		executionTimeout:      timeout,
		createdAt:             now,
		updatedAt:             now,
	}, nil
}

// Hydrate reconstructs a Schedule from persisted field values, bypassing
// New's validation (the row was already validated when first written).
// Storage adapters use this to rebuild the aggregate from a ScheduleRow.
func Hydrate(
	id, recordingID uuid.UUID,
	status Status,
	enabled bool,
	trigger TriggerCondition,
	maxParallel int,
	timeout time.Duration,
	createdAt, updatedAt time.Time,
	nextExecution, lastExecution *time.Time,
	totalExecutions, successfulExecutions int,
) *Schedule {
	return &Schedule{
		id: id, recordingID: recordingID, status: status, enabled: enabled, trigger: trigger,
		maxParallelExecutions: maxParallel, executionTimeout: timeout,
		createdAt: createdAt, updatedAt: updatedAt,
		nextExecution: nextExecution, lastExecution: lastExecution,
		totalExecutions: totalExecutions, successfulExecutions: successfulExecutions,
	}
}

func (s *Schedule) ID() uuid.UUID                  { return s.id }
func (s *Schedule) RecordingID() uuid.UUID         { return s.recordingID }
func (s *Schedule) Status() Status                 { return s.status }
func (s *Schedule) Enabled() bool                  { return s.enabled }
func (s *Schedule) Trigger() TriggerCondition       { return s.trigger }
func (s *Schedule) MaxParallelExecutions() int      { return s.maxParallelExecutions }
func (s *Schedule) ExecutionTimeout() time.Duration { return s.executionTimeout }
func (s *Schedule) CreatedAt() time.Time            { return s.createdAt }
func (s *Schedule) UpdatedAt() time.Time            { return s.updatedAt }
func (s *Schedule) NextExecution() *time.Time       { return s.nextExecution }
func (s *Schedule) LastExecution() *time.Time       { return s.lastExecution }
func (s *Schedule) TotalExecutions() int            { return s.totalExecutions }
func (s *Schedule) SuccessfulExecutions() int       { return s.successfulExecutions }
func (s *Schedule) RunningCount() int               { return s.runningCount }

// Activate transitions the schedule into active and computes its first
// next_execution against processStart.
func (s *Schedule) Activate(now, processStart time.Time) error {
	next, err := s.trigger.NextFire(now, processStart, s.lastExecution)
	if err != nil {
		return err
	}
	s.status = StatusActive
	if !next.IsZero() {
		s.nextExecution = &next
	}
	s.updatedAt = now
	return nil
}

// Deactivate transitions the schedule to inactive, clearing next_execution.
func (s *Schedule) Deactivate() {
	s.status = StatusInactive
	s.nextExecution = nil
	s.updatedAt = time.Now().UTC()
}

func (s *Schedule) SetEnabled(enabled bool) {
	s.enabled = enabled
	s.updatedAt = time.Now().UTC()
}

// Eligible reports whether the scheduler's tick loop may dispatch this
// schedule right now (spec.md §4.8 tick pseudocode).
func (s *Schedule) Eligible(now time.Time) bool {
	if !s.enabled || s.status != StatusActive {
		return false
	}
	if s.runningCount >= s.maxParallelExecutions {
		return false
	}
	return s.nextExecution != nil && !s.nextExecution.After(now)
}

// BeginExecution increments the in-memory running count; call when the
// scheduler spawns an execution for this schedule.
func (s *Schedule) BeginExecution() {
	s.runningCount++
}

// CompleteExecution decrements the running count, updates aggregate
// counters, last_execution, and recomputes next_execution.
func (s *Schedule) CompleteExecution(now, processStart time.Time, success bool) error {
	if s.runningCount > 0 {
		s.runningCount--
	}
	s.totalExecutions++
	if success {
		s.successfulExecutions++
	}
	s.lastExecution = &now

	next, err := s.trigger.NextFire(now, processStart, s.lastExecution)
	if err != nil {
		return err
	}
	if next.IsZero() {
		s.nextExecution = nil
	} else {
		s.nextExecution = &next
	}
	s.updatedAt = now
	return nil
}

// MarkRunning flips status to running while at least one execution is
// in flight; used by the scheduler to distinguish "active, waiting for
// next fire" from "active, currently executing".
func (s *Schedule) MarkRunning() {
	if s.status == StatusActive {
		s.status = StatusRunning
	}
}

// MarkIdleAgain reverts status from running back to active once no
// executions remain in flight.
func (s *Schedule) MarkIdleAgain() {
	if s.status == StatusRunning && s.runningCount == 0 {
		s.status = StatusActive
	}
}

// DefaultExecutionTimeout is the preset constructors' execution_timeout.
const DefaultExecutionTimeout = time.Hour

// NewDaily builds a Schedule that fires once a day at timeOfDay.
func NewDaily(recordingID uuid.UUID, timeOfDay time.Time) (*Schedule, error) {
	trigger := NewScheduledTrigger(timeOfDay, nil, &RepeatRule{Unit: RepeatDay, Interval: 1})
	return New(recordingID, trigger, 1, DefaultExecutionTimeout)
}

// NewWeekly builds a Schedule that fires at timeOfDay on the given weekdays.
func NewWeekly(recordingID uuid.UUID, timeOfDay time.Time, weekdays map[time.Weekday]bool) (*Schedule, error) {
	trigger := NewScheduledTrigger(timeOfDay, weekdays, nil)
	return New(recordingID, trigger, 1, DefaultExecutionTimeout)
}

// NewHotkeyTriggered builds a Schedule fired by a global hotkey chord.
func NewHotkeyTriggered(recordingID uuid.UUID, chord string) (*Schedule, error) {
	return New(recordingID, NewHotkeyTrigger(chord), 1, DefaultExecutionTimeout)
}

// NewOnStartup builds a Schedule that fires once, delay after process start.
func NewOnStartup(recordingID uuid.UUID, delay time.Duration) (*Schedule, error) {
	return New(recordingID, NewStartupTrigger(delay), 1, DefaultExecutionTimeout)
}
