// Package chord parses and normalizes keyboard chord strings used by the
// event filter's exclusion rules, the RPA control bindings, and the
// hotkey dispatcher's registration table.
package chord

import (
	"errors"
	"sort"
	"strings"
)

// ErrEmptyChord is returned when a chord string has no non-modifier key.
var ErrEmptyChord = errors.New("chord: missing key")

// modifierOrder fixes the canonical serialization order from spec.md §4.9:
// ctrl, alt, shift, meta, key.
var modifierOrder = []string{"ctrl", "alt", "shift", "win"}

var modifierRank = func() map[string]int {
	m := make(map[string]int, len(modifierOrder))
	for i, name := range modifierOrder {
		m[name] = i
	}
	return m
}()

var modifierAliases = map[string]string{
	"control": "ctrl",
	"ctrl":    "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"meta":    "win",
	"win":     "win",
	"windows": "win",
	"cmd":     "win",
	"super":   "win",
}

var keyAliases = map[string]string{
	"escape":    "esc",
	"esc":       "esc",
	"return":    "enter",
	"enter":     "enter",
	"spacebar":  "space",
	"space":     "space",
	"del":       "delete",
	"delete":    "delete",
	"pgup":      "page_up",
	"page_up":   "page_up",
	"pgdn":      "page_down",
	"page_down": "page_down",
	"ins":       "insert",
	"insert":    "insert",
}

// NormalizeKey lowercases and de-aliases a single key token (e.g. "Return",
// "RETURN", "enter" all become "enter"), without requiring a full chord
// string. This is what the Event Filter uses to normalize a raw key name
// before chord matching (spec.md §4.4 step 1).
func NormalizeKey(tok string) string {
	t := strings.ToLower(strings.TrimSpace(tok))
	if canon, ok := keyAliases[t]; ok {
		return canon
	}
	return t
}

// IsModifierToken reports whether tok names a modifier key rather than a
// regular key, and returns its canonical modifier name.
func IsModifierToken(tok string) (string, bool) {
	canon, ok := modifierAliases[strings.ToLower(strings.TrimSpace(tok))]
	return canon, ok
}

// Chord is the canonical, parsed form of a chord: a set of modifiers plus
// exactly one non-modifier key.
type Chord struct {
	Modifiers map[string]bool
	Key       string
}

// Parse parses a chord string per the grammar in spec.md §6:
//
//	chord := modifier ('+' modifier)* '+' key
//	modifier ∈ {ctrl,alt,shift,win}
//	key ∈ [a-z0-9]+ | f1..f12 | space|enter|tab|backspace|delete|esc|insert|
//	      home|end|page_up|page_down|up|down|left|right
//
// Parsing is case-insensitive; the result is always in canonical lowercase
// form. Parse is more lenient than this grammar: a chord with no modifiers
// (such as "f5") is accepted, any non-modifier token is taken as the key
// without checking it against the key set above, and when several
// non-modifier tokens appear the last one wins.
func Parse(s string) (Chord, error) {
	parts := strings.Split(s, "+")
	c := Chord{Modifiers: make(map[string]bool, 4)}
	var key string
	for _, raw := range parts {
		tok := strings.ToLower(strings.TrimSpace(raw))
		if tok == "" {
			continue
		}
		if canon, ok := modifierAliases[tok]; ok {
			c.Modifiers[canon] = true
			continue
		}
		if canon, ok := keyAliases[tok]; ok {
			key = canon
			continue
		}
		key = tok
	}
	if key == "" {
		return Chord{}, ErrEmptyChord
	}
	c.Key = key
	return c, nil
}

// String renders the chord in canonical form: ctrl, alt, shift, win, key,
// lowercase, '+' separated.
func (c Chord) String() string {
	mods := make([]string, 0, len(c.Modifiers))
	for m := range c.Modifiers {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return modifierRank[mods[i]] < modifierRank[mods[j]] })
	parts := append(mods, c.Key)
	return strings.Join(parts, "+")
}

// Equal reports whether two chords denote the same key combination.
func (c Chord) Equal(o Chord) bool {
	return c.String() == o.String()
}

// Normalize parses and re-serializes a chord string to its canonical form.
func Normalize(s string) (string, error) {
	c, err := Parse(s)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}
