package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deskflow-rpa/deskflow/internal/chord"
	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
	"github.com/deskflow-rpa/deskflow/internal/recording/model"
	"github.com/deskflow-rpa/deskflow/internal/storage"
)

// clickCoalesceWindow is the spec.md §4.5 click-coalescing interval:
// adjacent press+release of the same button within this window become one
// click Action.
const clickCoalesceWindow = 250 * time.Millisecond

// doubleClickWindow and doubleClickRadius define the OS double-click
// detection spec.md §4.5 delegates to ("within the OS double-click
// interval at the same position ±5 px").
const (
	doubleClickWindow = 500 * time.Millisecond
	doubleClickRadius = 5
)

// EngineState mirrors the Capture Engine's own state machine, kept
// separate from model.Status so the engine can reject operations (e.g.
// double-start) before touching the Recording aggregate.
type EngineState string

const (
	EngineIdle      EngineState = "idle"
	EngineRecording EngineState = "recording"
	EnginePaused    EngineState = "paused"
	EngineCompleted EngineState = "completed"
	EngineCancelled EngineState = "cancelled"
)

// ControlHandler reacts to a ControlEvent surfaced by the Event Filter
// (spec.md §4.4 step 2) — typically the Hotkey Dispatcher's RPA-control
// callbacks, but wired here so the engine can pause/resume/stop itself
// without an external round trip.
type ControlHandler func(ControlEvent)

// Engine implements the Capture Engine of spec.md §4.5.
type Engine struct {
	source InputSource
	filter *Filter
	clock  clock.Clock
	log    logger.Logger

	onControl ControlHandler

	mu          sync.Mutex
	state       EngineState
	recording   *model.Recording
	cancelFn    context.CancelFunc
	t0          int64
	lastActionTS int64

	pendingClicks map[string]*pendingClick
	lastClick     *clickRecord
}

type pendingClick struct {
	x, y         int
	dpiScale     float64
	downMonoTS   int64
}

type clickRecord struct {
	x, y   int
	monoTS int64
}

// NewEngine builds a Capture Engine over the given InputSource. Install an
// Event Filter with SetFilter before calling Start.
func NewEngine(source InputSource, clk clock.Clock, log logger.Logger) *Engine {
	return &Engine{
		source:        source,
		clock:         clk,
		log:           log,
		state:         EngineIdle,
		pendingClicks: make(map[string]*pendingClick),
	}
}

// SetFilter installs the Event Filter the engine reads from.
func (e *Engine) SetFilter(f *Filter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = f
}

// SetControlHandler installs the callback invoked for ControlEvents.
func (e *Engine) SetControlHandler(h ControlHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onControl = h
}

func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start transitions Idle → Recording: opens the InputSource, records
// t0 = now_mono(), and begins assembling a new Recording.
func (e *Engine) Start(ctx context.Context, name string, metadata model.CaptureMetadata) error {
	e.mu.Lock()
	if e.state != EngineIdle && e.state != EngineCompleted && e.state != EngineCancelled {
		e.mu.Unlock()
		return fmt.Errorf("capture: cannot start from state %s", e.state)
	}
	if e.filter == nil {
		e.mu.Unlock()
		return fmt.Errorf("capture: no event filter installed")
	}
	rec, err := model.New(name, metadata)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if err := rec.Start(); err != nil {
		e.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, err := e.source.Start(runCtx)
	if err != nil {
		cancel()
		e.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	e.recording = rec
	e.cancelFn = cancel
	e.t0 = e.clock.NowMono()
	e.lastActionTS = e.t0
	e.state = EngineRecording
	e.pendingClicks = make(map[string]*pendingClick)
	e.lastClick = nil
	e.mu.Unlock()

	go e.consume(events)
	return nil
}

func (e *Engine) consume(events <-chan RawEvent) {
	for ev := range events {
		e.handleRaw(ev)
	}
}

func (e *Engine) handleRaw(ev RawEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != EngineRecording && e.state != EnginePaused {
		return
	}

	filtered, control := e.filter.Process(ev)
	if control != nil {
		handler := e.onControl
		if handler != nil {
			go handler(*control)
		}
		return
	}
	if filtered == nil {
		return
	}
	if e.state == EnginePaused {
		return // continues to receive events but drops them while paused
	}

	switch filtered.Kind {
	case FilteredKeyChord:
		e.appendAction(model.NewKeyboardKeyAction(filtered.VKCode, modifiersFromChord(filtered.Chord)), filtered.MonotonicTS)
	case FilteredMouse:
		e.handleMouse(filtered)
	case FilteredWindow:
		e.appendAction(windowActionFromFiltered(filtered), filtered.MonotonicTS)
	}
}

func (e *Engine) handleMouse(filtered *FilteredEvent) {
	m := filtered.Mouse
	if m == nil {
		return
	}
	if m.Button == "" {
		return // pure move events do not themselves become Actions
	}

	key := m.Button
	if m.Pressed {
		e.pendingClicks[key] = &pendingClick{x: m.X, y: m.Y, dpiScale: m.DPIScale, downMonoTS: filtered.MonotonicTS}
		return
	}

	pending, ok := e.pendingClicks[key]
	if !ok {
		return
	}
	delete(e.pendingClicks, key)
	if clock.MonoDelta(pending.downMonoTS, filtered.MonotonicTS) > clickCoalesceWindow {
		return // press/release too far apart to coalesce into one click
	}

	double := false
	if e.lastClick != nil &&
		clock.MonoDelta(e.lastClick.monoTS, filtered.MonotonicTS) <= doubleClickWindow &&
		abs(e.lastClick.x-m.X) <= doubleClickRadius && abs(e.lastClick.y-m.Y) <= doubleClickRadius {
		double = true
	}
	e.lastClick = &clickRecord{x: m.X, y: m.Y, monoTS: filtered.MonotonicTS}

	point := model.Point{X: m.X, Y: m.Y, DPIScale: m.DPIScale}
	action := model.NewMouseAction(model.MouseButton(key), point, double, m.WheelDelta)
	e.appendAction(action, filtered.MonotonicTS)
}

// appendAction must be called with e.mu held. It sets delay_before from
// the monotonic delta since the previous Action, a non-zero default
// timeout, and appends to the live Recording.
func (e *Engine) appendAction(a *model.Action, monoTS int64) {
	a.Timestamp = e.clock.NowWall()
	a.DelayBefore = clock.MonoDelta(e.lastActionTS, monoTS)
	a.DelayAfter = 0
	a.Timeout = 5 * time.Second
	a.RetryCount = 1
	e.lastActionTS = monoTS

	if err := e.recording.AppendAction(a); err != nil && e.log != nil {
		e.log.Warn("capture: dropping invalid action", "error", err)
	}
}

// Pause transitions Recording → Paused.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != EngineRecording {
		return fmt.Errorf("capture: cannot pause from state %s", e.state)
	}
	if err := e.recording.Pause(); err != nil {
		return err
	}
	e.state = EnginePaused
	return nil
}

// Resume transitions Paused → Recording.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != EnginePaused {
		return fmt.Errorf("capture: cannot resume from state %s", e.state)
	}
	if err := e.recording.Resume(); err != nil {
		return err
	}
	e.state = EngineRecording
	// Excluding pause duration from the next action's delay_before: reset
	// the reference point to now so the gap spent paused is not counted.
	e.lastActionTS = e.clock.NowMono()
	return nil
}

// Stop transitions Recording|Paused → Completed, closes the InputSource,
// and finalizes the Recording's size/hash.
func (e *Engine) Stop() (*model.Recording, error) {
	e.mu.Lock()
	if e.state != EngineRecording && e.state != EnginePaused {
		e.mu.Unlock()
		return nil, fmt.Errorf("capture: cannot stop from state %s", e.state)
	}
	rec := e.recording
	e.mu.Unlock()

	e.source.Stop()
	if e.cancelFn != nil {
		e.cancelFn()
	}

	dto := rec.ToDTO()
	canonical, err := storage.Canonicalize(dto)
	if err != nil {
		return nil, fmt.Errorf("capture: canonicalizing recording: %w", err)
	}
	hash := storage.Hash(canonical)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := rec.Complete(canonical, hash); err != nil {
		return nil, err
	}
	e.state = EngineCompleted
	return rec, nil
}

// Cancel transitions any state → Cancelled, discarding buffered events.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source.Stop()
	if e.cancelFn != nil {
		e.cancelFn()
	}
	if e.recording != nil {
		e.recording.Cancel()
	}
	e.state = EngineCancelled
}

func modifiersFromChord(c chord.Chord) model.Modifiers {
	return model.Modifiers{
		Ctrl:  c.Modifiers["ctrl"],
		Alt:   c.Modifiers["alt"],
		Shift: c.Modifiers["shift"],
		Meta:  c.Modifiers["win"],
	}
}

func windowActionFromFiltered(filtered *FilteredEvent) *model.Action {
	w := filtered.Window
	descriptor := model.WindowDescriptor{Title: w.Title, Class: w.Class, Process: w.Process}
	return model.NewWindowAction(descriptor, true, nil, nil)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
