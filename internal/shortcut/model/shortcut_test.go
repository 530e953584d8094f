package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow-rpa/deskflow/internal/chord"
)

func mustParse(t *testing.T, s string) chord.Chord {
	c, err := chord.Parse(s)
	require.NoError(t, err)
	return c
}

func TestShortcutSettings_IsExcluded_Category(t *testing.T) {
	s := ShortcutSettings{ExcludeClipboard: true}
	assert.True(t, s.IsExcluded(mustParse(t, "ctrl+c")))
	assert.False(t, s.IsExcluded(mustParse(t, "alt+tab"))) // window category not enabled
}

func TestShortcutSettings_IsExcluded_WindowsKey(t *testing.T) {
	s := ShortcutSettings{ExcludeWindowsKey: true}
	bare := chord.Chord{Modifiers: map[string]bool{"win": true}}
	assert.True(t, s.IsExcluded(bare))
}

func TestShortcutSettings_IsExcluded_Custom(t *testing.T) {
	s := ShortcutSettings{CustomExcluded: []chord.Chord{mustParse(t, "ctrl+shift+x")}}
	assert.True(t, s.IsExcluded(mustParse(t, "ctrl+shift+x")))
	assert.False(t, s.IsExcluded(mustParse(t, "ctrl+shift+y")))
}

func TestShortcutSettings_MatchControl(t *testing.T) {
	s := ShortcutSettings{
		ControlBindings: map[RPAControl]chord.Chord{
			ControlStartStop: mustParse(t, "ctrl+alt+s"),
		},
	}
	control, ok := s.MatchControl(mustParse(t, "ctrl+alt+s"))
	require.True(t, ok)
	assert.Equal(t, ControlStartStop, control)

	_, ok = s.MatchControl(mustParse(t, "ctrl+alt+p"))
	assert.False(t, ok)
}

func TestPrecondition_IsZero(t *testing.T) {
	assert.True(t, Precondition{}.IsZero())
	assert.False(t, Precondition{ActiveWindowTitle: "Notepad"}.IsZero())
	assert.False(t, Precondition{ProcessName: "notepad.exe"}.IsZero())
}

func TestNewCustomShortcutCommand(t *testing.T) {
	c := mustParse(t, "ctrl+alt+t")

	_, err := NewCustomShortcutCommand(c, CommandSystemCmd, "", time.Second)
	assert.Error(t, err, "empty command should be rejected")

	_, err = NewCustomShortcutCommand(c, CommandSystemCmd, "echo hi", 0)
	assert.Error(t, err, "non-positive timeout should be rejected")

	_, err = NewCustomShortcutCommand(c, CommandType("bogus"), "echo hi", time.Second)
	assert.Error(t, err, "unknown command type should be rejected")

	cmd, err := NewCustomShortcutCommand(c, CommandSystemCmd, "echo hi", time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", cmd.ID.String())
	assert.Equal(t, CommandSystemCmd, cmd.Type)
	assert.Nil(t, cmd.Precondition)
}

func TestPresetCommands(t *testing.T) {
	presets := PresetCommands()
	require.Len(t, presets, 5)

	seenTypes := map[CommandType]bool{}
	for _, p := range presets {
		assert.True(t, p.Chord.Equal(p.Chord), "chord self-equality should hold")
		assert.NotEmpty(t, p.Command)
		assert.Greater(t, p.Timeout, time.Duration(0))
		seenTypes[p.Type] = true
	}
	assert.True(t, seenTypes[CommandApplication])
	assert.True(t, seenTypes[CommandFileOp])
	assert.True(t, seenTypes[CommandURL])
	assert.True(t, seenTypes[CommandTextInput])
}
