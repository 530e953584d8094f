// Package model implements the Recording aggregate and its Action variants
// (spec.md §3). Action is a tagged variant — one header struct shared by
// every kind, plus a variant-specific payload — replacing the source's
// class-inheritance hierarchy (spec.md §9, "Replacing dynamic polymorphism").
package model

import (
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ActionKind tags which variant-specific payload an Action carries.
type ActionKind string

const (
	ActionKeyboard ActionKind = "keyboard"
	ActionMouse    ActionKind = "mouse"
	ActionWindow   ActionKind = "window"
	ActionWait     ActionKind = "wait"
)

// InputMethod selects how Keyboard text payloads are delivered.
type InputMethod string

const (
	InputDirect    InputMethod = "direct"
	InputIME       InputMethod = "ime"
	InputClipboard InputMethod = "clipboard"
)

// MouseButton identifies which button a Mouse action acted on.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
	ButtonX1     MouseButton = "x1"
	ButtonX2     MouseButton = "x2"
)

// Modifiers is the shift/ctrl/alt/meta chord state attached to a Keyboard
// key-code action.
type Modifiers struct {
	Shift bool
	Ctrl  bool
	Alt   bool
	Meta  bool
}

// WindowDescriptor identifies a target window. At least one of Title,
// Class, Process must be non-empty (spec.md §3 Window invariant).
type WindowDescriptor struct {
	Title   string
	Class   string
	Process string
}

func (w WindowDescriptor) IsZero() bool {
	return w.Title == "" && w.Class == "" && w.Process == ""
}

// Point is a DPI-scaled absolute screen position.
type Point struct {
	X, Y     int
	DPIScale float64
}

// Rect describes a move/resize target for a Window action.
type Rect struct {
	X, Y, W, H int
}

// KeyboardPayload carries exactly one of {Key, Text} per spec.md §3.
type KeyboardPayload struct {
	// Key-code form.
	HasKey    bool
	VKCode    int
	Modifiers Modifiers

	// Text form.
	HasText bool
	Text    string
	Method  InputMethod
}

// MousePayload carries a button/position/click/wheel event.
type MousePayload struct {
	Button      MouseButton
	Position    Point
	DoubleClick bool
	WheelDelta  int
	Target      *WindowDescriptor // optional, relative-to-window
}

// WindowOp is one operation requested of a Window action.
type WindowOp string

const (
	WindowActivate WindowOp = "activate"
	WindowMove     WindowOp = "move"
	WindowResize   WindowOp = "resize"
)

// WindowPayload targets a window and requests zero or more operations.
type WindowPayload struct {
	Target     WindowDescriptor
	Activate   bool
	MoveTo     *Point
	ResizeTo   *Rect
}

// WaitPayload is a pure-sleep action with no OS effect.
type WaitPayload struct {
	Duration time.Duration
}

// Action is the tagged variant shared by every capture/replay step.
type Action struct {
	ActionID        uuid.UUID
	SequenceNumber  int
	Timestamp       time.Time // wall-clock, UTC
	DelayBefore     time.Duration
	DelayAfter      time.Duration
	Timeout         time.Duration
	RetryCount      int
	ContinueOnError bool

	Kind     ActionKind
	Keyboard *KeyboardPayload
	Mouse    *MousePayload
	Window   *WindowPayload
	Wait     *WaitPayload
}

// cjkAndKanaRanges are the Unicode blocks whose presence auto-promotes a
// Keyboard text action's input method to IME (spec.md §3).
var cjkAndKanaRanges = []*unicode.RangeTable{
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Han,
}

func containsCJKOrKana(s string) bool {
	for _, r := range s {
		for _, rt := range cjkAndKanaRanges {
			if unicode.Is(rt, r) {
				return true
			}
		}
	}
	return false
}

// NewKeyboardKeyAction builds a key-code Keyboard action.
func NewKeyboardKeyAction(vk int, mods Modifiers) *Action {
	return &Action{
		ActionID: uuid.New(),
		Kind:     ActionKeyboard,
		Keyboard: &KeyboardPayload{HasKey: true, VKCode: vk, Modifiers: mods},
		RetryCount: 1,
	}
}

// NewKeyboardTextAction builds a text Keyboard action, auto-promoting the
// input method to IME when the text contains CJK/Kana codepoints.
func NewKeyboardTextAction(text string, method InputMethod) *Action {
	if method == "" {
		method = InputDirect
	}
	if containsCJKOrKana(text) {
		method = InputIME
	}
	return &Action{
		ActionID: uuid.New(),
		Kind:     ActionKeyboard,
		Keyboard: &KeyboardPayload{HasText: true, Text: text, Method: method},
		RetryCount: 1,
	}
}

// NewMouseAction builds a Mouse action. wheelDelta != 0 is only valid with
// button == middle (spec.md §3); Validate enforces this.
func NewMouseAction(button MouseButton, pos Point, double bool, wheelDelta int) *Action {
	return &Action{
		ActionID: uuid.New(),
		Kind:     ActionMouse,
		Mouse: &MousePayload{
			Button: button, Position: pos, DoubleClick: double, WheelDelta: wheelDelta,
		},
		RetryCount: 1,
	}
}

// NewWindowAction builds a Window action.
func NewWindowAction(target WindowDescriptor, activate bool, moveTo *Point, resizeTo *Rect) *Action {
	return &Action{
		ActionID: uuid.New(),
		Kind:     ActionWindow,
		Window:   &WindowPayload{Target: target, Activate: activate, MoveTo: moveTo, ResizeTo: resizeTo},
		RetryCount: 1,
	}
}

// NewWaitAction builds a Wait action.
func NewWaitAction(d time.Duration) *Action {
	return &Action{
		ActionID: uuid.New(),
		Kind:     ActionWait,
		Wait:     &WaitPayload{Duration: d},
		RetryCount: 1,
	}
}

// Validate checks every Action-level invariant from spec.md §3.
func (a *Action) Validate() error {
	if a.DelayBefore < 0 || a.DelayAfter < 0 {
		return errors.New("action: delays must be non-negative")
	}
	if a.Timeout <= 0 {
		return errors.New("action: timeout must be positive")
	}
	if a.RetryCount < 1 {
		return errors.New("action: retry_count must be >= 1")
	}

	switch a.Kind {
	case ActionKeyboard:
		if a.Keyboard == nil {
			return errors.New("keyboard action: missing payload")
		}
		if a.Keyboard.HasKey == a.Keyboard.HasText {
			return errors.New("keyboard action: exactly one of key or text must be set")
		}
	case ActionMouse:
		if a.Mouse == nil {
			return errors.New("mouse action: missing payload")
		}
		if a.Mouse.WheelDelta != 0 && a.Mouse.Button != ButtonMiddle {
			return errors.New("mouse action: wheel_delta requires middle button")
		}
	case ActionWindow:
		if a.Window == nil {
			return errors.New("window action: missing payload")
		}
		if a.Window.Target.IsZero() {
			return errors.New("window action: target descriptor must have a non-empty field")
		}
		if a.Window.ResizeTo != nil && (a.Window.ResizeTo.W <= 0 || a.Window.ResizeTo.H <= 0) {
			return errors.New("window action: resize dimensions must be positive")
		}
	case ActionWait:
		if a.Wait == nil {
			return errors.New("wait action: missing payload")
		}
		if a.Wait.Duration <= 0 {
			return errors.New("wait action: duration must be positive")
		}
	default:
		return fmt.Errorf("action: unknown kind %q", a.Kind)
	}
	return nil
}
