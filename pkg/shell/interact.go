package shell

import (
	"context"
	"errors"
	"fmt"
	"os"

	"src.picosh.dev/pkg/dispatch"
	"src.picosh.dev/pkg/msgs"
	"src.picosh.dev/pkg/mux"
	"src.picosh.dev/pkg/sys"
)

// A command running in the background while the loop keeps polling.
type job struct {
	origin *mux.Session
	line   string
	cancel context.CancelFunc
	// Receives the result of the command, exactly once.
	done chan error
	// Canceled once done holds the result, or when the shell stops.
	finished context.Context
}

// Interact runs the interactive loop. It returns nil when the console exits
// or ctx is done, and dispatch.ErrRestart when a restart is requested. It
// may only be called once.
//
// Lines are run one at a time, each in its own goroutine, so that the
// sessions keep being served while a command runs. Lines typed meanwhile are
// handed to the command by ReadLine; those it doesn't read run after it.
func (sh *Shell) Interact(ctx context.Context, rc string) error {
	if rc != "" {
		if err := sh.mux.OpenInputFile(rc); err != nil && !errors.Is(err, os.ErrNotExist) {
			sh.mux.Send(err.Error() + "\n")
		}
	}
	sh.mux.Send(sh.Prompt())
	for {
		if sh.currentJob() == nil {
			if len(sh.backlog) > 0 {
				ev := sh.backlog[0]
				sh.backlog = sh.backlog[1:]
				sh.start(ctx, ev)
				continue
			}
			if sh.exiting {
				return nil
			}
		}

		wait := ctx
		j := sh.currentJob()
		if j != nil {
			wait = j.finished
		}
		events, _ := sh.mux.ReadInput(wait)
		if ctx.Err() != nil {
			sh.cancelJob()
			return nil
		}
		if j != nil && j.finished.Err() != nil {
			if stop, err := sh.finish(j); stop {
				return err
			}
		}
		for _, ev := range events {
			if stop, err := sh.handle(ctx, ev); stop {
				sh.cancelJob()
				return err
			}
		}
	}
}

func (sh *Shell) handle(ctx context.Context, ev mux.Event) (bool, error) {
	busy := sh.currentJob() != nil
	switch ev.Kind {
	case mux.Line:
		if !busy {
			sh.start(ctx, ev)
			return false, nil
		}
		// Once the queue has overflowed, later lines wait in the backlog
		// too, so that they keep their order.
		if len(sh.backlog) == 0 {
			select {
			case sh.input <- ev:
				return false, nil
			default:
			}
		}
		sh.backlog = append(sh.backlog, ev)
	case mux.Exit:
		if ev.Session != nil && ev.Session.Kind() == mux.Telnet {
			sh.mux.CloseSession(ev.Session)
			return false, nil
		}
		if !busy {
			return true, nil
		}
		if sh.exiting {
			return false, nil
		}
		// Let the running command and the lines already typed finish. No
		// more input will come.
		sh.exiting = true
		close(sh.eof)
	case mux.Interrupt:
		if busy {
			sh.Interrupt()
		} else {
			sh.mux.WriteTo(ev.Session, sh.Prompt())
		}
	case mux.Reprompt, mux.Joined:
		if !busy {
			sh.mux.WriteTo(ev.Session, sh.Prompt())
		}
	case mux.Left:
		logger.Info("session left", "session", ev.Session)
	}
	return false, nil
}

// Runs the line of ev in the background.
func (sh *Shell) start(ctx context.Context, ev mux.Event) {
	if ev.Session != nil && ev.Session.Kind() != mux.InputFile {
		sh.mux.Record(ev.Line)
	}
	jctx, cancel := context.WithCancel(ctx)
	finished, markFinished := context.WithCancel(ctx)
	j := &job{origin: ev.Session, line: ev.Line, cancel: cancel,
		done: make(chan error, 1), finished: finished}
	sh.mu.Lock()
	sh.job = j
	sh.mu.Unlock()

	go func() {
		defer markFinished()
		j.done <- sh.run(jctx, j)
	}()
}

func (sh *Shell) run(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("command panicked", "line", j.line, "panic", r, "stack", sys.DumpStack())
			sh.mux.Send(msgs.Format("error", j.line, fmt.Sprint(r)) + "\n")
			err = nil
		}
	}()
	status, err := sh.disp.Execute(ctx, j.line, j.origin)
	logger.Debug("command done", "line", j.line, "status", status, "err", err)
	return err
}

// Collects the result of a finished job. Lines typed while it ran and not
// consumed by it are queued to run next.
func (sh *Shell) finish(j *job) (bool, error) {
	err := <-j.done
	j.cancel()
	sh.mu.Lock()
	sh.job = nil
	sh.mu.Unlock()
	var queued []mux.Event
	for drained := false; !drained; {
		select {
		case ev := <-sh.input:
			queued = append(queued, ev)
		default:
			drained = true
		}
	}
	sh.backlog = append(queued, sh.backlog...)

	switch {
	case errors.Is(err, dispatch.ErrRestart):
		return true, err
	case errors.Is(err, dispatch.ErrExit):
		if j.origin != nil && j.origin.Kind() == mux.Telnet {
			sh.mux.CloseSession(j.origin)
		} else {
			return true, nil
		}
	}
	if len(sh.backlog) == 0 && !sh.exiting {
		sh.mux.Send(sh.Prompt())
	}
	return false, nil
}

func (sh *Shell) currentJob() *job {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.job
}

// Interrupt aborts the running command, if any. It is safe to call from any
// goroutine.
func (sh *Shell) Interrupt() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.job != nil {
		sh.job.cancel()
	}
}

// Cancels the running command and waits for it to return.
func (sh *Shell) cancelJob() {
	j := sh.currentJob()
	if j == nil {
		return
	}
	j.cancel()
	<-j.done
	sh.mu.Lock()
	sh.job = nil
	sh.mu.Unlock()
}
