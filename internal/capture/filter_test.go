package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow-rpa/deskflow/internal/chord"
	shortcutmodel "github.com/deskflow-rpa/deskflow/internal/shortcut/model"
)

func keyDown(name string, vk int, isMod bool, side string) RawEvent {
	return RawEvent{Kind: RawKeyDown, Key: &RawKeyPayload{KeyName: name, VKCode: vk, IsModifier: isMod, ModifierSide: side}}
}

func keyUp(name string, isMod bool, side string) RawEvent {
	return RawEvent{Kind: RawKeyUp, Key: &RawKeyPayload{KeyName: name, IsModifier: isMod, ModifierSide: side}}
}

func TestFilter_LoneModifierPressProducesNothing(t *testing.T) {
	f := NewFilter(shortcutmodel.ShortcutSettings{})
	filtered, control := f.Process(keyDown("Control", 0, true, "left"))
	assert.Nil(t, filtered)
	assert.Nil(t, control)
}

func TestFilter_ModifierPlusKeyProducesChord(t *testing.T) {
	f := NewFilter(shortcutmodel.ShortcutSettings{})
	f.Process(keyDown("Control", 0, true, "left"))

	filtered, control := f.Process(keyDown("t", 0x54, false, ""))
	require.NotNil(t, filtered)
	assert.Nil(t, control)
	assert.Equal(t, FilteredKeyChord, filtered.Kind)
	assert.True(t, filtered.Chord.Modifiers["ctrl"])
	assert.Equal(t, "t", filtered.Chord.Key)
}

func TestFilter_ReleasingOneSideKeepsModifierHeldByOther(t *testing.T) {
	f := NewFilter(shortcutmodel.ShortcutSettings{})
	f.Process(keyDown("Control", 0, true, "left"))
	f.Process(keyDown("Control", 0, true, "right"))
	f.Process(keyUp("Control", true, "left"))

	filtered, _ := f.Process(keyDown("t", 0x54, false, ""))
	require.NotNil(t, filtered)
	assert.True(t, filtered.Chord.Modifiers["ctrl"])
}

func TestFilter_ReleasingBothSidesClearsModifier(t *testing.T) {
	f := NewFilter(shortcutmodel.ShortcutSettings{})
	f.Process(keyDown("Control", 0, true, "left"))
	f.Process(keyUp("Control", true, "left"))

	filtered, _ := f.Process(keyDown("t", 0x54, false, ""))
	require.NotNil(t, filtered)
	assert.False(t, filtered.Chord.Modifiers["ctrl"])
}

func TestFilter_MatchControl_EmitsControlEventNotFilteredEvent(t *testing.T) {
	bound, err := chord.Parse("ctrl+alt+s")
	require.NoError(t, err)
	settings := shortcutmodel.ShortcutSettings{
		ControlBindings: map[shortcutmodel.RPAControl]chord.Chord{shortcutmodel.ControlStartStop: bound},
	}
	f := NewFilter(settings)
	f.Process(keyDown("Control", 0, true, "left"))
	f.Process(keyDown("Alt", 0, true, "left"))

	filtered, control := f.Process(keyDown("s", 0x53, false, ""))
	assert.Nil(t, filtered)
	require.NotNil(t, control)
	assert.Equal(t, shortcutmodel.ControlStartStop, control.Control)
}

func TestFilter_ExcludedChordSuppressed(t *testing.T) {
	settings := shortcutmodel.ShortcutSettings{ExcludeClipboard: true}
	f := NewFilter(settings)
	f.Process(keyDown("Control", 0, true, "left"))

	filtered, control := f.Process(keyDown("c", 0x43, false, ""))
	assert.Nil(t, filtered)
	assert.Nil(t, control)
}

func TestFilter_MouseAndWindowEventsPassThrough(t *testing.T) {
	f := NewFilter(shortcutmodel.ShortcutSettings{})

	filtered, control := f.Process(RawEvent{Kind: RawMouseClick, Mouse: &RawMousePayload{X: 1, Y: 2, Button: "left", Pressed: true}})
	require.NotNil(t, filtered)
	assert.Nil(t, control)
	assert.Equal(t, FilteredMouse, filtered.Kind)

	filtered, control = f.Process(RawEvent{Kind: RawWindowFocus, Window: &RawWindowPayload{Title: "Notepad"}})
	require.NotNil(t, filtered)
	assert.Nil(t, control)
	assert.Equal(t, FilteredWindow, filtered.Kind)
}

func TestFilter_UpdateSettings_TakesEffectImmediately(t *testing.T) {
	f := NewFilter(shortcutmodel.ShortcutSettings{})
	f.Process(keyDown("Control", 0, true, "left"))
	filtered, _ := f.Process(keyDown("c", 0x43, false, ""))
	require.NotNil(t, filtered) // not excluded yet

	f.UpdateSettings(shortcutmodel.ShortcutSettings{ExcludeClipboard: true})
	f.Process(keyDown("Control", 0, true, "left"))
	filtered, _ = f.Process(keyDown("c", 0x43, false, ""))
	assert.Nil(t, filtered)
}
