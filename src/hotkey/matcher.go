package hotkey

import (
	"sync"
)

// Matcher tracks pressed keys and resolves chords in fixed priority order:
// StopAlt, Start, Stop, Snip.
//
// state is the KeyboardState and is cleared whenever a chord fires. held tracks
// physical keys so autorepeat presses are ignored and modifiers that are still
// down keep counting toward the next chord after a fire.
type Matcher struct {
	mu     sync.Mutex
	chords map[Action]Chord
	state  map[LogicalKey]struct{}
	held   map[LogicalKey]struct{}
}

func NewMatcher() *Matcher {
	return &Matcher{
		chords: DefaultChords(),
		state:  make(map[LogicalKey]struct{}),
		held:   make(map[LogicalKey]struct{}),
	}
}

// SetChord replaces the chord for action. On error the previous chord stays active.
func (m *Matcher) SetChord(action Action, keyNames []string) error {
	if action == ActionNone {
		return &ChordError{Action: action, Keys: keyNames, Err: ErrUnknownKey}
	}
	c, err := NewChord(KindFor(action), keyNames)
	if err != nil {
		return &ChordError{Action: action, Keys: keyNames, Err: err}
	}
	m.mu.Lock()
	m.chords[action] = c
	m.mu.Unlock()
	return nil
}

func (m *Matcher) Chord(action Action) Chord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chords[action]
}

// Press records a key press and returns the action that fired, if any.
func (m *Matcher) Press(k LogicalKey) Action {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, down := m.held[k]; down {
		return ActionNone
	}
	m.held[k] = struct{}{}
	m.state[k] = struct{}{}

	for _, a := range priority {
		c, ok := m.chords[a]
		if !ok || !m.satisfied(c) {
			continue
		}
		clear(m.state)
		return a
	}
	return ActionNone
}

// Release removes the key. No chord is evaluated.
func (m *Matcher) Release(k LogicalKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, k)
	delete(m.state, k)
}

// PressName normalizes name before Press. Unknown keys are ignored.
func (m *Matcher) PressName(name string) Action {
	k, err := Normalize(name)
	if err != nil {
		return ActionNone
	}
	return m.Press(k)
}

func (m *Matcher) ReleaseName(name string) {
	if k, err := Normalize(name); err == nil {
		m.Release(k)
	}
}

// Pressed returns the current KeyboardState size.
func (m *Matcher) Pressed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state)
}

func (m *Matcher) satisfied(c Chord) bool {
	if len(c.Keys) == 0 {
		return false
	}
	for _, k := range c.Keys {
		if _, ok := m.state[k]; ok {
			continue
		}
		if _, ok := m.held[k]; ok && k.IsModifier() {
			continue
		}
		return false
	}
	return true
}
