// Package replay implements the Replay Engine of spec.md §4.6: a
// cooperative, timeline-driven executor that synthesizes OS input events
// to reproduce a Recording.
package replay

import (
	"context"
	"errors"

	"github.com/deskflow-rpa/deskflow/internal/recording/model"
)

// Sink synthesis errors are tagged distinctly (spec.md §4.3).
var (
	ErrWindowNotFound   = errors.New("replay: window not found")
	ErrPermissionDenied = errors.New("replay: permission denied")
	ErrSynthesisFailed  = errors.New("replay: input synthesis failed")
)

// InputSink is the platform-native synthesis contract of spec.md §4.3.
type InputSink interface {
	PressKey(ctx context.Context, vk int, mods model.Modifiers) error
	MoveAndClick(ctx context.Context, x, y int, button model.MouseButton, double bool, wheelDelta int) error
	TypeText(ctx context.Context, text string, method model.InputMethod) error

	FindWindow(ctx context.Context, target model.WindowDescriptor) (WindowHandle, error)
	Activate(ctx context.Context, h WindowHandle) error
	MoveWindow(ctx context.Context, h WindowHandle, rect model.Rect) error

	// ForegroundWindow returns the handle of whatever window currently has
	// focus, so the Replay Engine can restore it after a run when
	// PlaybackSettings.RestoreWindowPositions is set.
	ForegroundWindow(ctx context.Context) (WindowHandle, error)
}

// WindowHandle is an opaque platform window reference returned by
// FindWindow and consumed by Activate/MoveWindow.
type WindowHandle interface{}
