package term

import "strconv"

// Control sequences used for rendering.
const (
	// InsertChar opens a blank at the cursor, shifting the rest of the line
	// right.
	InsertChar = "\033[@"
	// DeleteChar deletes the character at the cursor, shifting the rest of
	// the line left.
	DeleteChar = "\033[1P"
	// ClearScreen clears the screen and homes the cursor.
	ClearScreen = "\033[2J\033[H"
	// SizeQuery saves the cursor, moves it to the far bottom right, asks for
	// its position and restores it. The reply is a CursorPosition holding the
	// terminal size.
	SizeQuery = "\033[s\0337\033[999C\033[999B\033[6n\r\033[u\0338"
	// TermTypeQuery asks for the primary and secondary device attributes.
	TermTypeQuery = "\033[c\033[>0c"
)

// CursorLeft returns the sequence moving the cursor n columns left. It
// returns "" when n <= 0.
func CursorLeft(n int) string { return cursorMove(n, 'D') }

// CursorRight returns the sequence moving the cursor n columns right. It
// returns "" when n <= 0.
func CursorRight(n int) string { return cursorMove(n, 'C') }

func cursorMove(n int, dir byte) string {
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return "\033[" + string(dir)
	}
	return "\033[" + strconv.Itoa(n) + string(dir)
}
