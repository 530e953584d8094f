//go:build !windows

package winsink

import (
	"context"
	"fmt"

	"github.com/deskflow-rpa/deskflow/internal/recording/model"
	"github.com/deskflow-rpa/deskflow/internal/replay"
)

// Sink is the non-Windows stand-in: every operation fails with
// ErrSynthesisFailed since there is no native synthesis path on this
// platform.
type Sink struct{}

func New() *Sink { return &Sink{} }

var errUnsupported = fmt.Errorf("%w: windows input sink unavailable on this platform", replay.ErrSynthesisFailed)

func (s *Sink) PressKey(ctx context.Context, vk int, mods model.Modifiers) error { return errUnsupported }

func (s *Sink) MoveAndClick(ctx context.Context, x, y int, button model.MouseButton, double bool, wheelDelta int) error {
	return errUnsupported
}

func (s *Sink) TypeText(ctx context.Context, text string, method model.InputMethod) error {
	return errUnsupported
}

func (s *Sink) FindWindow(ctx context.Context, target model.WindowDescriptor) (replay.WindowHandle, error) {
	return nil, errUnsupported
}

func (s *Sink) Activate(ctx context.Context, h replay.WindowHandle) error { return errUnsupported }

func (s *Sink) MoveWindow(ctx context.Context, h replay.WindowHandle, rect model.Rect) error {
	return errUnsupported
}

func (s *Sink) ForegroundWindow(ctx context.Context) (replay.WindowHandle, error) {
	return nil, errUnsupported
}
