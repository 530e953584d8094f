// Package model holds the ShortcutSettings and CustomShortcutCommand
// entities (spec.md §3) consulted by the Event Filter and invoked by the
// Hotkey Dispatcher.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deskflow-rpa/deskflow/internal/chord"
)

// RPAControl identifies one of the three built-in control bindings.
type RPAControl string

const (
	ControlStartStop      RPAControl = "start_stop"
	ControlPauseResume    RPAControl = "pause_resume"
	ControlEmergencyStop  RPAControl = "emergency_stop"
)

// ShortcutSettings is the Event Filter's exclusion/control configuration.
type ShortcutSettings struct {
	ExcludeClipboard bool
	ExcludeWindow    bool
	ExcludeApps      bool
	ExcludeWindowsKey bool

	CustomExcluded []chord.Chord

	ControlBindings map[RPAControl]chord.Chord

	CustomCommands []CustomShortcutCommand
}

// defaultExclusions are the built-in chords behind the clipboard, window and
// apps category toggles (the windows-key toggle is handled in IsExcluded).
// These cover the most common OS-reserved combinations; a
// platform adapter may extend this list with OS-specific reservations.
var defaultExclusions = map[string][]string{
	"clipboard": {"ctrl+c", "ctrl+v", "ctrl+x"},
	"window":    {"alt+tab", "alt+f4", "win+tab"},
	"apps":      {"ctrl+alt+delete", "win+e", "win+r"},
}

// IsExcluded reports whether the normalized chord string should be
// suppressed from the capture stream (spec.md §4.4 step 3).
func (s ShortcutSettings) IsExcluded(c chord.Chord) bool {
	check := func(category string, enabled bool) bool {
		if !enabled {
			return false
		}
		for _, raw := range defaultExclusions[category] {
			parsed, err := chord.Parse(raw)
			if err == nil && parsed.Equal(c) {
				return true
			}
		}
		return false
	}
	// The windows_key toggle suppresses the bare Meta/Win key itself,
	// which chord.Parse cannot represent as a standalone key.
	if s.ExcludeWindowsKey && c.Modifiers["win"] && c.Key == "" {
		return true
	}
	if check("clipboard", s.ExcludeClipboard) || check("window", s.ExcludeWindow) ||
		check("apps", s.ExcludeApps) {
		return true
	}
	for _, custom := range s.CustomExcluded {
		if custom.Equal(c) {
			return true
		}
	}
	return false
}

// MatchControl returns the RPAControl bound to c, if any.
func (s ShortcutSettings) MatchControl(c chord.Chord) (RPAControl, bool) {
	for control, bound := range s.ControlBindings {
		if bound.Equal(c) {
			return control, true
		}
	}
	return "", false
}

// CommandType tags a CustomShortcutCommand's side effect (spec.md §4.10).
type CommandType string

const (
	CommandApplication CommandType = "application"
	CommandFileOp      CommandType = "file-op"
	CommandSystemCmd   CommandType = "system-cmd"
	CommandScript      CommandType = "script"
	CommandURL         CommandType = "url"
	CommandTextInput   CommandType = "text-input"
)

// Precondition gates a command's execution on window/process state.
type Precondition struct {
	ActiveWindowTitle string
	ProcessName       string
}

func (p Precondition) IsZero() bool {
	return p.ActiveWindowTitle == "" && p.ProcessName == ""
}

// CustomShortcutCommand is the user-defined chord-to-command binding of
// spec.md §3.
type CustomShortcutCommand struct {
	ID                uuid.UUID
	Chord             chord.Chord
	Type              CommandType
	Command           string
	Parameters        []string
	WorkingDirectory  string
	RunAsAdmin        bool
	WaitForCompletion bool
	Timeout           time.Duration
	Precondition      *Precondition
}

// NewCustomShortcutCommand builds a CustomShortcutCommand with validation.
func NewCustomShortcutCommand(c chord.Chord, typ CommandType, command string, timeout time.Duration) (*CustomShortcutCommand, error) {
	if command == "" {
		return nil, errors.New("custom shortcut command: command must be non-empty")
	}
	if timeout <= 0 {
		return nil, errors.New("custom shortcut command: timeout must be positive")
	}
	switch typ {
	case CommandApplication, CommandFileOp, CommandSystemCmd, CommandScript, CommandURL, CommandTextInput:
	default:
		return nil, fmt.Errorf("custom shortcut command: unknown type %q", typ)
	}
	return &CustomShortcutCommand{
		ID:      uuid.New(),
		Chord:   c,
		Type:    typ,
		Command: command,
		Timeout: timeout,
	}, nil
}

const defaultCommandTimeout = 30 * time.Second

// PresetCommands returns the built-in starter set of CustomShortcutCommands
// offered to a new user: open the calculator, open the default text editor,
// open the desktop folder, search the web, and type the current date/time.
// A caller typically seeds ShortcutSettings.CustomCommands with these and
// lets the user rebind or delete them.
func PresetCommands() []CustomShortcutCommand {
	must := func(c chord.Chord, typ CommandType, command string) CustomShortcutCommand {
		cmd, err := NewCustomShortcutCommand(c, typ, command, defaultCommandTimeout)
		if err != nil {
			panic(err) // preset chords/commands are constants; a failure here is a programming error
		}
		return *cmd
	}
	return []CustomShortcutCommand{
		must(chord.Chord{Modifiers: map[string]bool{"ctrl": true, "alt": true}, Key: "c"}, CommandApplication, "calc.exe"),
		must(chord.Chord{Modifiers: map[string]bool{"ctrl": true, "alt": true}, Key: "n"}, CommandApplication, "notepad.exe"),
		must(chord.Chord{Modifiers: map[string]bool{"ctrl": true, "alt": true}, Key: "d"}, CommandFileOp, "%USERPROFILE%\\Desktop"),
		must(chord.Chord{Modifiers: map[string]bool{"ctrl": true, "alt": true}, Key: "g"}, CommandURL, "https://www.google.com"),
		// The original records this preset's command text as blank, generated
		// fresh at dispatch time; the command-construction invariant here
		// requires a non-empty string, so the preset carries a format layout
		// instead, and customcommand.Runner types time.Now() in that layout at
		// run time rather than the layout itself.
		must(chord.Chord{Modifiers: map[string]bool{"ctrl": true, "alt": true}, Key: "t"}, CommandTextInput, time.RFC3339),
	}
}
