// Package simsink is a recording InputSink used in tests: every call is
// appended to a log instead of touching the OS, so replay behavior can be
// asserted without synthesizing real input.
package simsink

import (
	"context"
	"fmt"
	"sync"

	"github.com/deskflow-rpa/deskflow/internal/recording/model"
	"github.com/deskflow-rpa/deskflow/internal/replay"
)

// Call records one InputSink invocation.
type Call struct {
	Method string
	Args   []interface{}
}

type fakeHandle string

// Sink is a scriptable replay.InputSink.
type Sink struct {
	mu    sync.Mutex
	Calls []Call

	// KnownWindows maps a descriptor's Title to a handle FindWindow
	// returns; descriptors not present here yield ErrWindowNotFound.
	KnownWindows map[string]bool

	// FailNext, if set, is returned (and cleared) by the next call to any
	// method, letting tests script a single synthesis failure.
	FailNext error

	// ForegroundHandle is returned by ForegroundWindow; when nil (the
	// default), ForegroundWindow returns a fixed placeholder fakeHandle.
	ForegroundHandle replay.WindowHandle
}

func New() *Sink {
	return &Sink{KnownWindows: make(map[string]bool)}
}

func (s *Sink) record(method string, args ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, Call{Method: method, Args: args})
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return err
	}
	return nil
}

func (s *Sink) PressKey(ctx context.Context, vk int, mods model.Modifiers) error {
	return s.record("PressKey", vk, mods)
}

func (s *Sink) MoveAndClick(ctx context.Context, x, y int, button model.MouseButton, double bool, wheelDelta int) error {
	return s.record("MoveAndClick", x, y, button, double, wheelDelta)
}

func (s *Sink) TypeText(ctx context.Context, text string, method model.InputMethod) error {
	return s.record("TypeText", text, method)
}

func (s *Sink) FindWindow(ctx context.Context, target model.WindowDescriptor) (replay.WindowHandle, error) {
	if err := s.record("FindWindow", target); err != nil {
		return nil, err
	}
	s.mu.Lock()
	known := s.KnownWindows[target.Title]
	s.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("%w: %s", replay.ErrWindowNotFound, target.Title)
	}
	return fakeHandle(target.Title), nil
}

func (s *Sink) Activate(ctx context.Context, h replay.WindowHandle) error {
	return s.record("Activate", h)
}

func (s *Sink) MoveWindow(ctx context.Context, h replay.WindowHandle, rect model.Rect) error {
	return s.record("MoveWindow", h, rect)
}

func (s *Sink) ForegroundWindow(ctx context.Context) (replay.WindowHandle, error) {
	if err := s.record("ForegroundWindow"); err != nil {
		return nil, err
	}
	if s.ForegroundHandle != nil {
		return s.ForegroundHandle, nil
	}
	return fakeHandle("__foreground__"), nil
}
