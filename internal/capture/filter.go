package capture

import (
	"sync"

	"github.com/deskflow-rpa/deskflow/internal/chord"
	shortcutmodel "github.com/deskflow-rpa/deskflow/internal/shortcut/model"
)

// FilteredKind tags what Capture Engine-relevant event a Filter emitted.
type FilteredKind string

const (
	FilteredKeyChord  FilteredKind = "key_chord"
	FilteredMouse     FilteredKind = "mouse"
	FilteredWindow    FilteredKind = "window"
)

// FilteredEvent is what survives the Event Filter on its way to the
// Capture Engine.
type FilteredEvent struct {
	Kind        FilteredKind
	MonotonicTS int64

	// KeyChord fields.
	Chord    chord.Chord
	VKCode   int
	KeyDown  bool // true=press, false=release

	Mouse  *RawMousePayload
	Window *RawWindowPayload
}

// ControlEvent is emitted instead of a FilteredEvent when a chord matches
// an RPA control binding (spec.md §4.4 step 2).
type ControlEvent struct {
	Control shortcutmodel.RPAControl
}

const (
	modLeft  = "left"
	modRight = "right"
)

// Filter implements the Event Filter of spec.md §4.4: a modifier-state
// tracker plus control/exclusion chord recognition.
type Filter struct {
	mu       sync.Mutex
	settings shortcutmodel.ShortcutSettings

	// counters[modifier][side] counts currently-held keys, so releasing
	// one side does not clear the modifier while the other side is held.
	counters map[string]map[string]int
}

// NewFilter builds a Filter over the given settings snapshot.
func NewFilter(settings shortcutmodel.ShortcutSettings) *Filter {
	return &Filter{
		settings: settings,
		counters: map[string]map[string]int{
			"ctrl":  {modLeft: 0, modRight: 0},
			"alt":   {modLeft: 0, modRight: 0},
			"shift": {modLeft: 0, modRight: 0},
			"win":   {modLeft: 0, modRight: 0},
		},
	}
}

// UpdateSettings replaces the ShortcutSettings snapshot the filter
// evaluates against.
func (f *Filter) UpdateSettings(settings shortcutmodel.ShortcutSettings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = settings
}

func (f *Filter) activeModifiers() map[string]bool {
	mods := make(map[string]bool, 4)
	for name, sides := range f.counters {
		if sides[modLeft] > 0 || sides[modRight] > 0 {
			mods[name] = true
		}
	}
	return mods
}

// Process consumes one RawEvent and returns at most one of
// (FilteredEvent, ControlEvent); both zero values means the event was
// suppressed or was a lone modifier press/release.
func (f *Filter) Process(ev RawEvent) (*FilteredEvent, *ControlEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev.Kind {
	case RawMouseMove, RawMouseClick, RawMouseScroll:
		return &FilteredEvent{Kind: FilteredMouse, MonotonicTS: ev.MonotonicTS, Mouse: ev.Mouse}, nil
	case RawWindowFocus:
		return &FilteredEvent{Kind: FilteredWindow, MonotonicTS: ev.MonotonicTS, Window: ev.Window}, nil
	case RawKeyDown, RawKeyUp:
		return f.processKey(ev)
	default:
		return nil, nil
	}
}

func (f *Filter) processKey(ev RawEvent) (*FilteredEvent, *ControlEvent) {
	k := ev.Key
	if k == nil {
		return nil, nil
	}

	if k.IsModifier {
		name, _ := chord.IsModifierToken(k.KeyName)
		if name == "" {
			return nil, nil
		}
		side := k.ModifierSide
		if side != modLeft && side != modRight {
			side = modLeft
		}
		delta := 1
		if ev.Kind == RawKeyUp {
			delta = -1
		}
		f.counters[name][side] += delta
		if f.counters[name][side] < 0 {
			f.counters[name][side] = 0
		}
		// Lone modifier press/release never becomes an Action.
		return nil, nil
	}

	// Only key-down produces a chord Action; key-up of a non-modifier is
	// dropped here and never reaches the Capture Engine.
	if ev.Kind != RawKeyDown {
		return nil, nil
	}

	c := chord.Chord{Modifiers: f.activeModifiers(), Key: chord.NormalizeKey(k.KeyName)}

	if control, ok := f.settings.MatchControl(c); ok {
		return nil, &ControlEvent{Control: control}
	}
	if f.settings.IsExcluded(c) {
		return nil, nil
	}
	return &FilteredEvent{Kind: FilteredKeyChord, MonotonicTS: ev.MonotonicTS, Chord: c, VKCode: k.VKCode, KeyDown: true}, nil
}
