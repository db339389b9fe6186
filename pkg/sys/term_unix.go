//go:build unix

package sys

import (
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Geometry assumed for a terminal that reports zero, as serial consoles do.
const (
	fallbackWidth  = 80
	fallbackHeight = 24
)

// MakeRaw puts the terminal referenced by fd into raw mode, so that the
// editor sees every byte as it is typed. The returned function restores the
// previous mode.
func MakeRaw(fd int) (restore func() error, err error) {
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() error { return term.Restore(fd, old) }, nil
}

// TermSize returns the width and height of the terminal referenced by fd.
// A zero dimension is replaced by the classic 80x24 value.
func TermSize(fd int) (width, height int, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	width, height = int(ws.Col), int(ws.Row)
	if width == 0 {
		width = fallbackWidth
	}
	if height == 0 {
		height = fallbackHeight
	}
	return width, height, nil
}
