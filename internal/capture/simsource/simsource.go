// Package simsource is a deterministic InputSource implementation used in
// tests and on platforms without a native hook adapter: events are fed in
// programmatically rather than captured from the OS.
package simsource

import (
	"context"
	"fmt"
	"sync"

	"github.com/deskflow-rpa/deskflow/internal/capture"
)

// Source is a scriptable capture.InputSource: test code calls Emit to push
// RawEvents into the stream Start returns.
type Source struct {
	mu      sync.Mutex
	events  chan capture.RawEvent
	started bool
	fail    error
}

// New creates a Source. If fail is non-nil, Start returns it wrapped in
// capture.ErrCaptureUnavailable instead of opening a stream — this models
// the "hook cannot be installed" failure path of spec.md §4.2.
func New(fail error) *Source {
	return &Source{fail: fail}
}

func (s *Source) Start(ctx context.Context) (<-chan capture.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrCaptureUnavailable, s.fail)
	}
	s.events = make(chan capture.RawEvent, 256)
	s.started = true
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.started {
			close(s.events)
			s.started = false
		}
	}()
	return s.events, nil
}

func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		close(s.events)
		s.started = false
	}
}

// Emit pushes a RawEvent into the running stream. It is a no-op if Start
// has not been called or the stream has already closed.
func (s *Source) Emit(ev capture.RawEvent) {
	s.mu.Lock()
	ch := s.events
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	defer func() { recover() }() // swallow send-on-closed-channel race at shutdown
	ch <- ev
}
