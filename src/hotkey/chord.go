package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWrongKeyCount    = errors.New("wrong number of keys for chord kind")
	ErrMissingModifier  = errors.New("combo chord needs a modifier key (Control, Shift or Alt)")
	ErrMissingActionKey = errors.New("combo chord needs a non-modifier key")
	ErrUnknownKey       = errors.New("unknown key")
)

// Kind distinguishes multi-key combos from single key chords.
type Kind int

const (
	Combo Kind = iota
	SingleKey
)

func (k Kind) String() string {
	if k == SingleKey {
		return "single-key"
	}
	return "combo"
}

// Action is what a chord triggers.
type Action int

const (
	ActionNone Action = iota
	ActionStopAlt
	ActionStart
	ActionStop
	ActionSnip
)

func (a Action) String() string {
	switch a {
	case ActionStopAlt:
		return "stop-alt"
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	case ActionSnip:
		return "snip"
	default:
		return "none"
	}
}

// ParseAction is the inverse of Action.String. ActionNone is never returned
// without an error.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "start":
		return ActionStart, nil
	case "stop":
		return ActionStop, nil
	case "stop-alt":
		return ActionStopAlt, nil
	case "snip":
		return ActionSnip, nil
	}
	return ActionNone, fmt.Errorf("unknown action %q", name)
}

// priority is the evaluation order on every press.
var priority = []Action{ActionStopAlt, ActionStart, ActionStop, ActionSnip}

// KindFor returns the chord kind an action slot accepts.
func KindFor(a Action) Kind {
	if a == ActionStopAlt {
		return SingleKey
	}
	return Combo
}

// Chord is a validated set of keys. Keys keep the order they were given in.
type Chord struct {
	Keys []LogicalKey
	Kind Kind
}

// ChordError reports why a chord definition was rejected.
type ChordError struct {
	Action Action
	Keys   []string
	Err    error
}

func (e *ChordError) Error() string {
	return fmt.Sprintf("invalid %s chord %q: %v", e.Action, strings.Join(e.Keys, "+"), e.Err)
}

func (e *ChordError) Unwrap() error { return e.Err }

// NewChord normalizes names and validates them for kind.
func NewChord(kind Kind, names []string) (Chord, error) {
	seen := make(map[LogicalKey]bool, len(names))
	keys := make([]LogicalKey, 0, len(names))
	for _, n := range names {
		k, err := Normalize(n)
		if err != nil {
			return Chord{}, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	c := Chord{Keys: keys, Kind: kind}
	if err := c.Validate(); err != nil {
		return Chord{}, err
	}
	return c, nil
}

// ParseChord splits a definition like "Shift+E" and builds a chord of the given kind.
func ParseChord(def string, kind Kind) (Chord, error) {
	return NewChord(kind, SplitChord(def))
}

// SplitChord splits "Ctrl+Shift+T" into its key names.
func SplitChord(def string) []string {
	if strings.TrimSpace(def) == "" {
		return nil
	}
	parts := strings.Split(def, "+")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func (c Chord) Validate() error {
	switch c.Kind {
	case SingleKey:
		if len(c.Keys) != 1 {
			return fmt.Errorf("%w: %s chord takes exactly 1 key, got %d", ErrWrongKeyCount, c.Kind, len(c.Keys))
		}
	default:
		if len(c.Keys) < 2 {
			return fmt.Errorf("%w: %s chord takes at least 2 keys, got %d", ErrWrongKeyCount, c.Kind, len(c.Keys))
		}
		var mods, actions int
		for _, k := range c.Keys {
			if k.IsModifier() {
				mods++
			} else {
				actions++
			}
		}
		if mods == 0 {
			return ErrMissingModifier
		}
		if actions == 0 {
			return ErrMissingActionKey
		}
	}
	return nil
}

// String renders the chord for display, e.g. "Shift + E".
func (c Chord) String() string {
	parts := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, " + ")
}

func mustChord(kind Kind, names ...string) Chord {
	c, err := NewChord(kind, names)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultChords are used until reconfigured.
func DefaultChords() map[Action]Chord {
	return map[Action]Chord{
		ActionStart:   mustChord(Combo, "Shift", "E"),
		ActionStop:    mustChord(Combo, "Shift", "S"),
		ActionStopAlt: mustChord(SingleKey, "Escape"),
		ActionSnip:    mustChord(Combo, "Shift", "Q"),
	}
}
