package replay

import (
	"context"
	"errors"
	"time"

	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
	"github.com/deskflow-rpa/deskflow/internal/recording/model"
)

// PlaybackEventKind tags a step of the PlaybackEvent stream (spec.md §4.6).
type PlaybackEventKind string

const (
	PlaybackStarted     PlaybackEventKind = "started"
	PlaybackActionBegin PlaybackEventKind = "action_begin"
	PlaybackActionEnd   PlaybackEventKind = "action_end"
	PlaybackFinished    PlaybackEventKind = "finished"
)

// PlaybackEvent is one update in the Replay Engine's output stream.
type PlaybackEvent struct {
	Kind   PlaybackEventKind
	Index  int
	Err    error
	Result *PlaybackResult
}

// PlaybackResult is the terminal outcome of one replay run.
type PlaybackResult struct {
	Success         bool
	Cancelled       bool
	FailedIndex     *int
	Err             error
	ActionsExecuted int
	TotalActions    int
}

// foregroundActivateRetryDelay is the spec.md §4.6 edge-case pause:
// "retries once after a 50 ms pause on WindowNotFound".
const foregroundActivateRetryDelay = 50 * time.Millisecond

// Engine implements the Replay Engine of spec.md §4.6.
type Engine struct {
	sink  InputSink
	clock clock.Clock
	log   logger.Logger
}

// NewEngine builds a Replay Engine over the given InputSink.
func NewEngine(sink InputSink, clk clock.Clock, log logger.Logger) *Engine {
	return &Engine{sink: sink, clock: clk, log: log}
}

// Run executes rec's actions against settings, emitting PlaybackEvents on
// the returned channel, which closes after the terminal `finished` event.
// ctx cancellation stops the loop between actions, never mid-synthesis
// (spec.md §4.6 edge case: "the engine completes any in-flight press/
// release pair before reporting").
func (e *Engine) Run(ctx context.Context, rec *model.Recording, settings model.PlaybackSettings) <-chan PlaybackEvent {
	out := make(chan PlaybackEvent, 16)
	go e.run(ctx, rec, settings, out)
	return out
}

func (e *Engine) run(ctx context.Context, rec *model.Recording, settings model.PlaybackSettings, out chan<- PlaybackEvent) {
	defer close(out)
	out <- PlaybackEvent{Kind: PlaybackStarted}

	var restoreHandle WindowHandle
	if settings.RestoreWindowPositions {
		if h, err := e.sink.ForegroundWindow(ctx); err == nil {
			restoreHandle = h
		} else if e.log != nil {
			e.log.Warn("replay: could not capture foreground window to restore", "error", err)
		}
	}
	defer e.restoreForeground(restoreHandle)

	actions := rec.Actions()
	speed := settings.SpeedMultiplier
	if speed <= 0 {
		speed = 1
	}

	executed := 0
	for i, action := range actions {
		if ctx.Err() != nil {
			e.finish(out, &PlaybackResult{Cancelled: true, ActionsExecuted: executed, TotalActions: len(actions)})
			return
		}

		if err := e.clock.Sleep(ctx, scaleDuration(action.DelayBefore, speed)); err != nil {
			e.finish(out, &PlaybackResult{Cancelled: true, ActionsExecuted: executed, TotalActions: len(actions)})
			return
		}

		out <- PlaybackEvent{Kind: PlaybackActionBegin, Index: i}

		maxRetries := action.RetryCount
		if settings.MaxRetries > maxRetries {
			maxRetries = settings.MaxRetries
		}
		if maxRetries < 1 {
			maxRetries = 1
		}

		var execErr error
		for attempt := 1; attempt <= maxRetries; attempt++ {
			execErr = e.executeOne(ctx, action, settings)
			if execErr == nil || ctx.Err() != nil {
				break
			}
		}

		out <- PlaybackEvent{Kind: PlaybackActionEnd, Index: i, Err: execErr}

		if ctx.Err() != nil {
			e.finish(out, &PlaybackResult{Cancelled: true, ActionsExecuted: executed, TotalActions: len(actions)})
			return
		}

		if execErr != nil {
			executed++
			if action.ContinueOnError || !settings.StopOnError {
				// continue to the next action
			} else {
				idx := i
				e.finish(out, &PlaybackResult{
					Success: false, FailedIndex: &idx, Err: execErr,
					ActionsExecuted: executed, TotalActions: len(actions),
				})
				return
			}
		} else {
			executed++
		}

		if err := e.clock.Sleep(ctx, scaleDuration(action.DelayAfter, speed)); err != nil {
			e.finish(out, &PlaybackResult{Cancelled: true, ActionsExecuted: executed, TotalActions: len(actions)})
			return
		}
	}

	e.finish(out, &PlaybackResult{Success: true, ActionsExecuted: executed, TotalActions: len(actions)})
}

func (e *Engine) finish(out chan<- PlaybackEvent, result *PlaybackResult) {
	out <- PlaybackEvent{Kind: PlaybackFinished, Result: result}
}

// restoreForeground re-activates the window that held focus before the run
// started, best-effort: a cancelled or already-expired ctx must not stop
// the restore attempt, so this uses its own short-lived context.
func (e *Engine) restoreForeground(h WindowHandle) {
	if h == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.sink.Activate(ctx, h); err != nil && e.log != nil {
		e.log.Warn("replay: restoring pre-replay foreground window failed", "error", err)
	}
}

func scaleDuration(d time.Duration, speed float64) time.Duration {
	if speed <= 0 {
		return d
	}
	return time.Duration(float64(d) / speed)
}

func (e *Engine) executeOne(ctx context.Context, action *model.Action, settings model.PlaybackSettings) error {
	timeout := action.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if settings.EnsureForeground {
		if err := e.ensureForeground(actionCtx, action); err != nil && e.log != nil {
			e.log.Warn("replay: ensure_foreground failed, proceeding anyway", "error", err)
		}
	}

	switch action.Kind {
	case model.ActionKeyboard:
		return e.executeKeyboard(actionCtx, action.Keyboard)
	case model.ActionMouse:
		return e.executeMouse(actionCtx, action.Mouse)
	case model.ActionWindow:
		return e.executeWindow(actionCtx, action.Window)
	case model.ActionWait:
		return e.clock.Sleep(actionCtx, action.Wait.Duration)
	default:
		return errors.New("replay: unknown action kind")
	}
}

func (e *Engine) executeKeyboard(ctx context.Context, k *model.KeyboardPayload) error {
	if k.HasKey {
		return e.sink.PressKey(ctx, k.VKCode, k.Modifiers)
	}
	return e.sink.TypeText(ctx, k.Text, k.Method)
}

func (e *Engine) executeMouse(ctx context.Context, m *model.MousePayload) error {
	return e.sink.MoveAndClick(ctx, m.Position.X, m.Position.Y, m.Button, m.DoubleClick, m.WheelDelta)
}

func (e *Engine) executeWindow(ctx context.Context, w *model.WindowPayload) error {
	handle, err := e.sink.FindWindow(ctx, w.Target)
	if err != nil {
		return err
	}
	if w.Activate {
		if err := e.sink.Activate(ctx, handle); err != nil {
			return err
		}
	}
	if w.MoveTo != nil || w.ResizeTo != nil {
		rect := model.Rect{}
		if w.MoveTo != nil {
			rect.X, rect.Y = w.MoveTo.X, w.MoveTo.Y
		}
		if w.ResizeTo != nil {
			rect.W, rect.H = w.ResizeTo.W, w.ResizeTo.H
		}
		if err := e.sink.MoveWindow(ctx, handle, rect); err != nil {
			return err
		}
	}
	return nil
}

// ensureForeground activates the action's target window before synthesis,
// retrying once after a short pause if the window isn't found yet
// (spec.md §4.6 edge case).
func (e *Engine) ensureForeground(ctx context.Context, action *model.Action) error {
	target, ok := targetOf(action)
	if !ok {
		return nil
	}
	handle, err := e.sink.FindWindow(ctx, target)
	if errors.Is(err, ErrWindowNotFound) {
		if sleepErr := e.clock.Sleep(ctx, foregroundActivateRetryDelay); sleepErr != nil {
			return sleepErr
		}
		handle, err = e.sink.FindWindow(ctx, target)
	}
	if err != nil {
		return err
	}
	return e.sink.Activate(ctx, handle)
}

func targetOf(action *model.Action) (model.WindowDescriptor, bool) {
	switch action.Kind {
	case model.ActionWindow:
		return action.Window.Target, true
	case model.ActionMouse:
		if action.Mouse.Target != nil {
			return *action.Mouse.Target, true
		}
	}
	return model.WindowDescriptor{}, false
}
