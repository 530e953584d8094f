//go:build !windows

package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWinListener_UnavailableOutsideWindows(t *testing.T) {
	l := NewListener()

	_, err := l.Start()
	assert.ErrorIs(t, err, ErrListenerUnavailable)

	assert.ErrorIs(t, l.RegisterChord("ctrl+alt+t"), ErrListenerUnavailable)
	assert.ErrorIs(t, l.UnregisterChord("ctrl+alt+t"), ErrListenerUnavailable)

	l.Stop()
}
