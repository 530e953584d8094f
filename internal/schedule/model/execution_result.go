package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ExecutionResult is the per-run record of spec.md §3, immutable once
// EndTime is set.
type ExecutionResult struct {
	executionID     uuid.UUID
	scheduleID      uuid.UUID
	startTime       time.Time
	endTime         *time.Time
	success         bool
	errMsg          string
	actionsExecuted int
	totalActions    int
}

// NewExecutionResult starts an in-progress execution record.
func NewExecutionResult(scheduleID uuid.UUID, totalActions int, start time.Time) *ExecutionResult {
	return &ExecutionResult{
		executionID:  uuid.New(),
		scheduleID:   scheduleID,
		startTime:    start,
		totalActions: totalActions,
	}
}

func (e *ExecutionResult) ExecutionID() uuid.UUID  { return e.executionID }
func (e *ExecutionResult) ScheduleID() uuid.UUID   { return e.scheduleID }
func (e *ExecutionResult) StartTime() time.Time    { return e.startTime }
func (e *ExecutionResult) EndTime() *time.Time     { return e.endTime }
func (e *ExecutionResult) Success() bool           { return e.success }
func (e *ExecutionResult) Error() string           { return e.errMsg }
func (e *ExecutionResult) ActionsExecuted() int    { return e.actionsExecuted }
func (e *ExecutionResult) TotalActions() int       { return e.totalActions }
func (e *ExecutionResult) InProgress() bool        { return e.endTime == nil }

// Duration is zero while the execution is in progress.
func (e *ExecutionResult) Duration() time.Duration {
	if e.endTime == nil {
		return 0
	}
	return e.endTime.Sub(e.startTime)
}

// CompletionRate is actions_executed / total_actions, or 0 if total is 0.
func (e *ExecutionResult) CompletionRate() float64 {
	if e.totalActions == 0 {
		return 0
	}
	return float64(e.actionsExecuted) / float64(e.totalActions)
}

// Complete sets the terminal fields exactly once (spec.md §3 invariant:
// "Immutable once end_time is set").
func (e *ExecutionResult) Complete(end time.Time, success bool, errMsg string, actionsExecuted int) error {
	if e.endTime != nil {
		return errors.New("execution result: already completed")
	}
	e.endTime = &end
	e.success = success
	e.errMsg = errMsg
	e.actionsExecuted = actionsExecuted
	return nil
}
