package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// LogicalKey is a normalized key name: "Control", "Shift", "Alt", "Escape",
// upper-case letters and digits, "F1".."F24" and a few named keys.
type LogicalKey string

const (
	KeyControl LogicalKey = "Control"
	KeyShift   LogicalKey = "Shift"
	KeyAlt     LogicalKey = "Alt"
	KeyEscape  LogicalKey = "Escape"
)

// IsModifier reports whether k is one of Control, Shift or Alt.
func (k LogicalKey) IsModifier() bool {
	return k == KeyControl || k == KeyShift || k == KeyAlt
}

var namedKeys = map[string]LogicalKey{
	"ctrl": KeyControl, "control": KeyControl, "lctrl": KeyControl, "rctrl": KeyControl,
	"lcontrol": KeyControl, "rcontrol": KeyControl, "left ctrl": KeyControl, "right ctrl": KeyControl,
	"shift": KeyShift, "lshift": KeyShift, "rshift": KeyShift, "left shift": KeyShift, "right shift": KeyShift,
	"alt": KeyAlt, "lalt": KeyAlt, "ralt": KeyAlt, "alt gr": KeyAlt, "option": KeyAlt,
	"esc": KeyEscape, "escape": KeyEscape,
	"space": "Space",
	"enter": "Enter", "return": "Enter",
	"tab":       "Tab",
	"backspace": "Backspace",
	"delete":    "Delete", "del": "Delete",
	"insert": "Insert", "ins": "Insert",
	"home":   "Home",
	"end":    "End",
	"pageup": "PageUp", "pgup": "PageUp", "page up": "PageUp",
	"pagedown": "PageDown", "pgdn": "PageDown", "page down": "PageDown",
	"left": "Left", "up": "Up", "right": "Right", "down": "Down",
}

// Normalize maps a key name as typed by a user or reported by the hook
// to its LogicalKey. Character keys are case-insensitive.
func Normalize(name string) (LogicalKey, error) {
	if name == " " {
		return "Space", nil
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", fmt.Errorf("%w: empty key name", ErrUnknownKey)
	}
	if k, ok := namedKeys[lower]; ok {
		return k, nil
	}
	if len(lower) == 1 {
		c := lower[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return LogicalKey(strings.ToUpper(lower)), nil
		}
	}
	if len(lower) >= 2 && lower[0] == 'f' {
		if n, err := strconv.Atoi(lower[1:]); err == nil && n >= 1 && n <= 24 && strconv.Itoa(n) == lower[1:] {
			return LogicalKey("F" + strconv.Itoa(n)), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// vkToKey maps Windows virtual key codes (gohook rawcodes on Windows) to keys.
var vkToKey = buildVKTable()

func buildVKTable() map[uint16]LogicalKey {
	t := map[uint16]LogicalKey{
		16: KeyShift, 160: KeyShift, 161: KeyShift, // VK_SHIFT, VK_LSHIFT, VK_RSHIFT
		17: KeyControl, 162: KeyControl, 163: KeyControl, // VK_CONTROL, VK_LCONTROL, VK_RCONTROL
		18: KeyAlt, 164: KeyAlt, 165: KeyAlt, // VK_MENU, VK_LMENU, VK_RMENU
		27: KeyEscape, // VK_ESCAPE
		32: "Space",   // VK_SPACE
		13: "Enter",   // VK_RETURN
		9:  "Tab",     // VK_TAB
		8:  "Backspace",
		46: "Delete",
		45: "Insert",
		36: "Home",
		35: "End",
		33: "PageUp",   // VK_PRIOR
		34: "PageDown", // VK_NEXT
		37: "Left",
		38: "Up",
		39: "Right",
		40: "Down",
	}
	// Letter keys (A-Z) - VK codes 0x41-0x5A (65-90)
	for c := 'A'; c <= 'Z'; c++ {
		t[uint16(c)] = LogicalKey(string(c))
	}
	// Number keys (0-9) - VK codes 0x30-0x39 (48-57)
	for c := '0'; c <= '9'; c++ {
		t[uint16(c)] = LogicalKey(string(c))
	}
	// Function keys (F1-F24) - VK codes 112-135
	for i := 1; i <= 24; i++ {
		t[uint16(111+i)] = LogicalKey(fmt.Sprintf("F%d", i))
	}
	return t
}

// KeyFromVK resolves a Windows virtual key code.
func KeyFromVK(code uint16) (LogicalKey, bool) {
	k, ok := vkToKey[code]
	return k, ok
}
