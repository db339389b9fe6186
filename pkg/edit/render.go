package edit

import (
	"strings"

	"github.com/rivo/uniseg"

	"src.picosh.dev/pkg/cli/term"
)

// Erases from the cursor to the end of the line.
const eraseToEOL = "\033[K"

// width returns the number of columns rs occupies.
func width(rs []rune) int {
	return uniseg.StringWidth(string(rs))
}

func (ed *Editor) insert(r rune) {
	w := width([]rune{r})
	switch {
	case ed.cursor == len(ed.line):
		ed.line = append(ed.line, r)
		ed.write(string(r))
	case ed.mode == Insert:
		ed.line = append(ed.line[:ed.cursor], append([]rune{r}, ed.line[ed.cursor:]...)...)
		ed.write(strings.Repeat(term.InsertChar, w) + string(r))
	default:
		old := width(ed.line[ed.cursor : ed.cursor+1])
		ed.line[ed.cursor] = r
		if old == w {
			ed.write(string(r))
		} else {
			// Width changed; redraw the tail.
			tail := ed.line[ed.cursor+1:]
			ed.write(string(r) + string(tail) + eraseToEOL + term.CursorLeft(width(tail)))
		}
	}
	ed.cursor++
}

func (ed *Editor) backspace() {
	if ed.cursor == 0 {
		return
	}
	w := width(ed.line[ed.cursor-1 : ed.cursor])
	ed.line = append(ed.line[:ed.cursor-1], ed.line[ed.cursor:]...)
	ed.cursor--
	tail := string(ed.line[ed.cursor:])
	ed.write(strings.Repeat("\b", w) + tail + strings.Repeat(" ", w) +
		strings.Repeat("\b", uniseg.StringWidth(tail)+w))
}

func (ed *Editor) deleteAtCursor() {
	if ed.cursor == len(ed.line) {
		return
	}
	w := width(ed.line[ed.cursor : ed.cursor+1])
	ed.line = append(ed.line[:ed.cursor], ed.line[ed.cursor+1:]...)
	ed.write(strings.Repeat(term.DeleteChar, w))
}

// moveTo moves the cursor to position i.
func (ed *Editor) moveTo(i int) {
	switch {
	case i < ed.cursor:
		ed.write(term.CursorLeft(width(ed.line[i:ed.cursor])))
	case i > ed.cursor:
		ed.write(term.CursorRight(width(ed.line[ed.cursor:i])))
	}
	ed.cursor = i
}

// replace replaces the whole line and puts the cursor at position cursor of
// the new line.
func (ed *Editor) replace(line string, cursor int) {
	rs := []rune(line)
	cursor = min(max(cursor, 0), len(rs))
	ed.write(term.CursorLeft(width(ed.line[:ed.cursor])) + line + eraseToEOL +
		term.CursorLeft(width(rs[cursor:])))
	ed.line = rs
	ed.cursor = cursor
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' }

func (ed *Editor) wordLeft() {
	i := ed.cursor
	for i > 0 && isSpace(ed.line[i-1]) {
		i--
	}
	for i > 0 && !isSpace(ed.line[i-1]) {
		i--
	}
	ed.moveTo(i)
}

func (ed *Editor) wordRight() {
	i := ed.cursor
	for i < len(ed.line) && !isSpace(ed.line[i]) {
		i++
	}
	for i < len(ed.line) && isSpace(ed.line[i]) {
		i++
	}
	ed.moveTo(i)
}
