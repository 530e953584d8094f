//go:build !windows

package winsource

import (
	"context"
	"fmt"

	"github.com/deskflow-rpa/deskflow/internal/capture"
)

// Source is the non-Windows stand-in: the platform hook is unsupported,
// so Start always fails with capture.ErrCaptureUnavailable (spec.md §4.2:
// "unsupported platform").
type Source struct{}

func New() *Source { return &Source{} }

func (s *Source) Start(ctx context.Context) (<-chan capture.RawEvent, error) {
	return nil, fmt.Errorf("%w: windows input hook unavailable on this platform", capture.ErrCaptureUnavailable)
}

func (s *Source) Stop() {}
