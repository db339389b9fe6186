package mux

import (
	"io"
	"os"

	"src.picosh.dev/pkg/sys"
)

// ConsoleIO is the local terminal of the shell.
type ConsoleIO interface {
	io.Writer
	// ReadAvailable reads input that is available without blocking. It
	// returns 0 and a nil error when there is none.
	ReadAvailable(p []byte) (int, error)
}

// FileConsole is a ConsoleIO backed by a pair of files, normally stdin and
// stdout.
type FileConsole struct {
	in, out *os.File
	restore func() error
}

// NewFileConsole creates a FileConsole.
func NewFileConsole(in, out *os.File) *FileConsole {
	return &FileConsole{in: in, out: out}
}

// IsTerminal reports whether the input is a terminal.
func (c *FileConsole) IsTerminal() bool { return sys.IsATTY(c.in.Fd()) }

// MakeRaw puts the input terminal into raw mode, so that every key press is
// seen by the editor. It does nothing if the input is not a terminal.
func (c *FileConsole) MakeRaw() error {
	if !c.IsTerminal() || c.restore != nil {
		return nil
	}
	restore, err := sys.MakeRaw(int(c.in.Fd()))
	if err != nil {
		return err
	}
	c.restore = restore
	return nil
}

// Size returns the size of the output terminal, or zeros if it is not one.
func (c *FileConsole) Size() (width, height int) {
	if !sys.IsATTY(c.out.Fd()) {
		return 0, 0
	}
	w, h, err := sys.TermSize(int(c.out.Fd()))
	if err != nil {
		logger.Debug("cannot get terminal size", "err", err)
		return 0, 0
	}
	return w, h
}

// ReadAvailable implements ConsoleIO.
func (c *FileConsole) ReadAvailable(p []byte) (int, error) {
	ready, err := sys.WaitForRead(0, c.in)
	if err != nil || !ready[0] {
		return 0, err
	}
	return c.in.Read(p)
}

func (c *FileConsole) Write(p []byte) (int, error) { return c.out.Write(p) }

// Close restores the terminal mode. It does not close the files.
func (c *FileConsole) Close() error {
	if c.restore == nil {
		return nil
	}
	err := c.restore()
	c.restore = nil
	return err
}
