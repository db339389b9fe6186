// Package term decodes terminal escape sequences and provides the control
// sequences used to render on terminals.
package term

import "strings"

// Complete reports whether seq, the bytes received after an ESC, forms a
// complete escape sequence.
//
// A CSI sequence (ESC [) ends with a byte in the range 0x40 to 0x7e. A G3
// sequence (ESC O) is exactly one byte long after the O. ESC followed by any
// other byte is an Alt-modified key.
func Complete(seq string) bool {
	if seq == "" {
		return false
	}
	switch seq[0] {
	case '[':
		if len(seq) < 2 {
			return false
		}
		last := seq[len(seq)-1]
		return 0x40 <= last && last <= 0x7e
	case 'O':
		return len(seq) == 2
	default:
		return true
	}
}

// Decode decodes a complete escape sequence, given without its leading ESC.
// It returns nil for sequences it does not know.
func Decode(seq string) Event {
	if seq == "" {
		return nil
	}
	switch seq[0] {
	case '[':
		return decodeCSI(seq[1:])
	case 'O':
		if len(seq) != 2 {
			return nil
		}
		if k, ok := g3Seq[rune(seq[1])]; ok {
			return KeyEvent(k)
		}
		return nil
	default:
		k := ctrlModify(rune(seq[0]))
		k.Mod |= Alt
		return KeyEvent(k)
	}
}

// decodeCSI decodes the body of a CSI sequence, the part after "ESC [".
func decodeCSI(body string) Event {
	if body == "" {
		return nil
	}
	last := rune(body[len(body)-1])
	params := body[:len(body)-1]
	var starter byte
	if params != "" && (params[0] == '<' || params[0] == '>' || params[0] == '?') {
		starter = params[0]
		params = params[1:]
	}

	if last == 'c' && starter != '<' {
		return DeviceAttributes{Secondary: starter == '>', Params: params}
	}
	nums, ok := parseNums(params)
	if !ok {
		return nil
	}
	switch {
	case starter != 0:
		return nil
	case last == 'R':
		if len(nums) != 2 {
			return nil
		}
		return CursorPosition{nums[0], nums[1]}
	case last == 'n':
		if len(nums) != 1 {
			return nil
		}
		return StatusReport{nums[0]}
	}
	k := parseCSI(nums, last)
	if k == (Key{}) {
		return nil
	}
	return KeyEvent(k)
}

// parseNums parses semicolon-separated decimal numbers. An empty field counts
// as 0.
func parseNums(s string) ([]int, bool) {
	if s == "" {
		return nil, true
	}
	fields := strings.Split(s, ";")
	nums := make([]int, len(fields))
	for i, f := range fields {
		for _, r := range f {
			if r < '0' || r > '9' {
				return nil, false
			}
			nums[i] = nums[i]*10 + int(r-'0')
		}
	}
	return nums, true
}

// Determines whether a rune corresponds to a Ctrl-modified key and returns the
// Key the rune represents.
func ctrlModify(r rune) Key {
	switch r {
	case 0x0:
		return K('`', Ctrl) // ^@
	case 0x1e:
		return K('6', Ctrl) // ^^
	case 0x1f:
		return K('/', Ctrl) // ^_
	case '\t', '\n', 0x7f:
		// Ambiguous Ctrl keys; prefer the non-Ctrl form as they are more likely.
		return K(r)
	default:
		if 0x1 <= r && r <= 0x1d {
			return K(r+0x40, Ctrl)
		}
	}
	return K(r)
}

// G3-style key sequences: \eO followed by exactly one character. For instance,
// \eOP is F1.
var g3Seq = map[rune]Key{
	'A': K(Up), 'B': K(Down), 'C': K(Right), 'D': K(Left),
	'H': K(Home), 'F': K(End), 'M': K(Insert),
	// urxvt
	'a': K(Up, Ctrl), 'b': K(Down, Ctrl),
	'c': K(Right, Ctrl), 'd': K(Left, Ctrl),
	'P': K(F1), 'Q': K(F2), 'R': K(F3), 'S': K(F4),
}

// CSI-style key sequences identified by the last rune. For instance, \e[A is
// Up. When modified, two numerical arguments are added, the first always being
// 1 and the second identifying the modifier. For instance, \e[1;5A is Ctrl-Up.
var csiSeqByLast = map[rune]Key{
	'A': K(Up), 'B': K(Down), 'C': K(Right), 'D': K(Left),
	// urxvt
	'a': K(Up, Shift), 'b': K(Down, Shift),
	'd': K(Left, Shift),
	'H': K(Home), 'F': K(End),
	'Z': K('\t', Shift),
}

// CSI-style key sequences ending with '~' with one or two numerical
// arguments. The first argument identifies the key, and the optional second
// argument identifies the modifier. For instance, \e[3~ is Delete, and \e[3;5~
// is Ctrl-Delete.
var csiSeqTilde = map[int]rune{
	1: Home, 4: End,
	2: Insert,
	3: Delete,
	5: PageUp, 6: PageDown,
	// urxvt
	7: Home, 8: End,
	11: F1, 12: F2, 13: F3, 14: F4,
	15: F5, 17: F6, 18: F7, 19: F8,
	20: F9, 21: F10, 23: F11, 24: F12,
}

func parseCSI(nums []int, last rune) Key {
	if k, ok := csiSeqByLast[last]; ok {
		if len(nums) == 0 {
			// Unmodified: \e[A (Up)
			return k
		} else if len(nums) == 2 && nums[0] == 1 {
			// Modified: \e[1;5A (Ctrl-Up)
			return xtermModify(k, nums[1])
		}
		return Key{}
	}

	switch last {
	case '~':
		if len(nums) == 1 || len(nums) == 2 {
			if r, ok := csiSeqTilde[nums[0]]; ok {
				k := K(r)
				if len(nums) == 1 {
					return k
				}
				return xtermModify(k, nums[1])
			}
		}
	case '$', '^', '@':
		// Modified by urxvt.
		if len(nums) == 1 {
			if r, ok := csiSeqTilde[nums[0]]; ok {
				var mod Mod
				switch last {
				case '$':
					mod = Shift
				case '^':
					mod = Ctrl
				case '@':
					mod = Shift | Ctrl
				}
				return K(r, mod)
			}
		}
	}
	return Key{}
}

func xtermModify(k Key, mod int) Key {
	if mod < 0 || mod > 16 {
		return Key{}
	}
	if mod == 0 {
		return k
	}
	modFlags := mod - 1
	if modFlags&0x1 != 0 {
		k.Mod |= Shift
	}
	if modFlags&0x2 != 0 {
		k.Mod |= Alt
	}
	if modFlags&0x4 != 0 {
		k.Mod |= Ctrl
	}
	if modFlags&0x8 != 0 {
		// This should be Meta, but Meta and Alt are conflated.
		k.Mod |= Alt
	}
	return k
}
