//go:build unix

package sys

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Interrupt, graceful stop (TERM and HUP) and stack dump.
var shellSignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP, unix.SIGUSR1}

func notifySignals() chan os.Signal {
	ch := make(chan os.Signal, 4*len(shellSignals))
	signal.Notify(ch, shellSignals...)
	return ch
}
