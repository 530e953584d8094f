//go:build !windows

package winsource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deskflow-rpa/deskflow/internal/capture"
)

func TestSource_UnavailableOutsideWindows(t *testing.T) {
	s := New()
	_, err := s.Start(context.Background())
	assert.ErrorIs(t, err, capture.ErrCaptureUnavailable)
	s.Stop()
}
