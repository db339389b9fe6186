//go:build unix

package shell

import (
	"context"
	"os"
	"syscall"

	"src.picosh.dev/pkg/sys"
)

// Handles signals until ctx is done. SIGINT interrupts the running command,
// as Ctrl-C does when the console is not in raw mode; SIGTERM and SIGHUP
// stop the shell; SIGUSR1 logs the stacks of all goroutines.
func (sh *Shell) handleSignals(ctx context.Context, stop context.CancelFunc) {
	sigCh := sys.NotifySignals()
	defer sys.StopSignals(sigCh)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			handleSignal(sh, sig, stop)
		}
	}
}

func handleSignal(sh *Shell, sig os.Signal, stop context.CancelFunc) {
	logger.Info("signal", "sig", sig)
	switch sig {
	case syscall.SIGINT:
		sh.Interrupt()
	case syscall.SIGTERM, syscall.SIGHUP:
		stop()
	case syscall.SIGUSR1:
		logger.Info("stack dump", "stack", sys.DumpStack())
	}
}
