// Package sys provides the OS-level primitives the shell is built on:
// zero-timeout readiness checks, non-blocking socket I/O, terminal modes and
// filesystem remounting.
package sys

import (
	"errors"
	"os"
	"os/signal"
	"runtime"

	"github.com/mattn/go-isatty"
)

// ErrWouldBlock is returned by the non-blocking I/O functions when the
// operation cannot make progress without blocking.
var ErrWouldBlock = errors.New("operation would block")

// NotifySignals returns a channel on which interrupt, termination and
// stack-dump signals get delivered.
func NotifySignals() chan os.Signal { return notifySignals() }

// StopSignals stops delivering signals to a channel returned by
// NotifySignals.
func StopSignals(ch chan os.Signal) { signal.Stop(ch) }

// DumpStack returns the stack traces of all goroutines.
func DumpStack() string {
	buf := make([]byte, 16<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, 2*len(buf))
	}
}

// IsATTY determines whether the given file is a terminal.
func IsATTY(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
