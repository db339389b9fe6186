package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"src.picosh.dev/pkg/dispatch"
	"src.picosh.dev/pkg/histfile"
	"src.picosh.dev/pkg/mux"
	"src.picosh.dev/pkg/prog"
	"src.picosh.dev/pkg/settings"
	"src.picosh.dev/pkg/store"
	"src.picosh.dev/pkg/sys"
)

// Program is the shell subprogram. It runs the script given as an argument,
// or the interactive loop otherwise.
type Program struct{}

// Replaces the process with a fresh copy of itself. Overridden in tests.
var execSelf = func() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}

func (p Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	err := p.run(fds, f, args)
	if errors.Is(err, dispatch.ErrRestart) {
		logger.Info("restarting")
		return execSelf()
	}
	return err
}

func (Program) run(fds [3]*os.File, f *prog.Flags, args []string) (err error) {
	defer handlePanic(fds[2], &err)
	if f.NoConsole && f.TelnetPort == 0 && len(args) == 0 {
		return prog.BadUsage("--no-console requires --telnet-port")
	}

	cfg := Config{
		Settings:   settings.New(f.Settings, settings.Options{Includes: true, Memoize: true}),
		History:    histfile.New(f.History),
		TelnetHost: f.TelnetHost,
	}
	if db, err := store.NewStore(f.DB); err != nil {
		fmt.Fprintln(fds[2], "Warning:", err)
		fmt.Fprintln(fds[2], "Telnet logins will not be recorded.")
	} else {
		defer db.Close()
		cfg.Logins = db
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if len(args) > 0 {
		cfg.Console = mux.NewFileConsole(fds[0], fds[1])
		sh := New(cfg)
		defer sh.Close()
		go sh.handleSignals(ctx, stop)
		status, err := sh.Script(ctx, args[0])
		if err != nil {
			return err
		}
		if status != dispatch.StatusOK {
			return prog.Exit(1)
		}
		return nil
	}

	var console *mux.FileConsole
	if !f.NoConsole {
		console = mux.NewFileConsole(fds[0], fds[1])
		if err := console.MakeRaw(); err != nil {
			fmt.Fprintln(fds[2], "Warning: cannot put terminal into raw mode:", err)
		}
		defer console.Close()
		cfg.Console = console
	}
	sh := New(cfg)
	defer sh.Close()
	if console != nil && console.IsTerminal() {
		if w, h := console.Size(); w > 0 && h > 0 {
			sh.mux.SetSize(nil, w, h)
		}
		sh.QuerySize()
	}
	go sh.handleSignals(ctx, stop)

	if f.TelnetPort > 0 {
		if err := sh.StartTelnet(ctx, f.TelnetPort); err != nil {
			return err
		}
	}
	return sh.Interact(ctx, f.RC)
}

// Interactive mode panic handler. The terminal has been restored by the
// deferred calls that ran before it.
func handlePanic(stderr *os.File, err *error) {
	r := recover()
	if r != nil {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, sys.DumpStack())
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, r)
		*err = prog.Exit(2)
	}
}
