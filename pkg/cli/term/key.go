package term

import (
	"fmt"
	"strings"
)

// Key is one keystroke decoded from the input stream.
type Key struct {
	// A printable rune, or one of the negative function key constants.
	Rune rune
	Mod  Mod
}

// K returns the Key for r with all of mods applied.
func K(r rune, mods ...Mod) Key {
	k := Key{Rune: r}
	for _, m := range mods {
		k.Mod |= m
	}
	return k
}

// Mod is a set of modifier keys.
type Mod byte

// Modifiers. Shift is only reported with function keys.
const (
	Shift Mod = 1 << iota
	Alt
	Ctrl
)

// Function keys are negative runes, so they never collide with typed text.
const (
	F1 rune = -iota - 1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12

	Up
	Down
	Right
	Left

	Home
	Insert
	Delete
	End
	PageUp
	PageDown
)

var functionKeyNames = map[rune]string{
	F1: "F1", F2: "F2", F3: "F3", F4: "F4", F5: "F5", F6: "F6",
	F7: "F7", F8: "F8", F9: "F9", F10: "F10", F11: "F11", F12: "F12",
	Up: "Up", Down: "Down", Right: "Right", Left: "Left",
	Home: "Home", Insert: "Insert", Delete: "Delete", End: "End",
	PageUp: "PageUp", PageDown: "PageDown",
}

// String returns the key in the "Ctrl-Alt-Shift-Name" form used in logs.
func (k Key) String() string {
	var sb strings.Builder
	for _, m := range []struct {
		mod  Mod
		name string
	}{{Ctrl, "Ctrl-"}, {Alt, "Alt-"}, {Shift, "Shift-"}} {
		if k.Mod&m.mod != 0 {
			sb.WriteString(m.name)
		}
	}
	switch name, ok := functionKeyNames[k.Rune]; {
	case k.Rune > 0:
		sb.WriteRune(k.Rune)
	case ok:
		sb.WriteString(name)
	default:
		fmt.Fprintf(&sb, "(bad function key %d)", -k.Rune)
	}
	return sb.String()
}
