package app

import (
	"context"
	"fmt"

	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
	"github.com/deskflow-rpa/deskflow/internal/replay"
	schedmodel "github.com/deskflow-rpa/deskflow/internal/schedule/model"
)

// ReplayRunner adapts the Replay Engine to scheduler.Runner: it loads the
// schedule's linked Recording, replays it end to end, and folds the result
// stream into the (actionsExecuted, totalActions, err) shape the Scheduler
// records per execution (spec.md §4.8).
type ReplayRunner struct {
	store  *Store
	engine *replay.Engine
	log    logger.Logger
}

// NewReplayRunner builds a ReplayRunner over store and engine.
func NewReplayRunner(store *Store, engine *replay.Engine, log logger.Logger) *ReplayRunner {
	return &ReplayRunner{store: store, engine: engine, log: log}
}

// Run implements scheduler.Runner.
func (r *ReplayRunner) Run(ctx context.Context, sched *schedmodel.Schedule) (actionsExecuted, totalActions int, err error) {
	rec, loadErr := r.store.LoadRecording(ctx, sched.RecordingID())
	if loadErr != nil {
		return 0, 0, fmt.Errorf("app: loading recording %s: %w", sched.RecordingID(), loadErr)
	}
	if !rec.Executable() {
		return 0, 0, fmt.Errorf("app: recording %s is not executable", sched.RecordingID())
	}

	events := r.engine.Run(ctx, rec, rec.Playback())
	var result *replay.PlaybackResult
	for ev := range events {
		if ev.Kind == replay.PlaybackFinished {
			result = ev.Result
		}
	}
	if result == nil {
		return 0, len(rec.Actions()), fmt.Errorf("app: replay produced no result")
	}
	if !result.Success {
		if result.Err != nil {
			return result.ActionsExecuted, result.TotalActions, result.Err
		}
		return result.ActionsExecuted, result.TotalActions, fmt.Errorf("app: replay did not complete successfully")
	}
	return result.ActionsExecuted, result.TotalActions, nil
}
