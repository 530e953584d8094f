// Package capture implements the Event Filter and Capture Engine
// (spec.md §4.4/§4.5): consuming a raw InputSource event stream and
// assembling it into a Recording.
package capture

import (
	"context"
	"errors"
)

// RawEventKind tags an unfiltered event from an InputSource.
type RawEventKind string

const (
	RawKeyDown     RawEventKind = "key_down"
	RawKeyUp       RawEventKind = "key_up"
	RawMouseMove   RawEventKind = "mouse_move"
	RawMouseClick  RawEventKind = "mouse_click"
	RawMouseScroll RawEventKind = "mouse_scroll"
	RawWindowFocus RawEventKind = "window_focus"
)

// RawKeyPayload carries a virtual-key code and whether it is a modifier key.
// KeyName is the platform adapter's raw key label (e.g. "Return", "F1");
// the Event Filter normalizes it, so the adapter need not lowercase or
// de-alias it itself.
type RawKeyPayload struct {
	VKCode     int
	KeyName    string
	IsModifier bool
	ModifierSide string // "left" or "right", meaningful only when IsModifier
}

// RawMousePayload carries position and button/wheel state.
type RawMousePayload struct {
	X, Y       int
	DPIScale   float64
	Button     string // "left", "right", "middle", "x1", "x2"; empty for move
	Pressed    bool   // true=press, false=release, only meaningful for click
	WheelDelta int
}

// RawWindowPayload describes a focus-change event.
type RawWindowPayload struct {
	Title   string
	Class   string
	Process string
}

// RawEvent is the unfiltered event InputSource emits (spec.md §4.2).
type RawEvent struct {
	Kind         RawEventKind
	MonotonicTS  int64
	Key          *RawKeyPayload
	Mouse        *RawMousePayload
	Window       *RawWindowPayload
}

// ErrCaptureUnavailable is returned by InputSource.Start when the platform
// hook cannot be installed (spec.md §4.2: "insufficient privilege,
// unsupported platform").
var ErrCaptureUnavailable = errors.New("capture: input source unavailable")

// InputSource is the platform-native hook contract of spec.md §4.2. It
// MUST NOT interpret or filter events; that is the Event Filter's job.
type InputSource interface {
	// Start begins delivering events to the returned channel until ctx is
	// cancelled or Stop is called. The channel closes within one
	// scheduling quantum of either. Returns ErrCaptureUnavailable if the
	// hook cannot be installed.
	Start(ctx context.Context) (<-chan RawEvent, error)
	Stop()
}
