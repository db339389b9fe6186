// Package shell is the entry point for the interactive interface of picosh.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"src.picosh.dev/pkg/buildinfo"
	"src.picosh.dev/pkg/builtins"
	"src.picosh.dev/pkg/cli/term"
	"src.picosh.dev/pkg/dispatch"
	"src.picosh.dev/pkg/edit"
	"src.picosh.dev/pkg/histfile"
	"src.picosh.dev/pkg/logutil"
	"src.picosh.dev/pkg/msgs"
	"src.picosh.dev/pkg/mux"
	"src.picosh.dev/pkg/parse"
	"src.picosh.dev/pkg/settings"
	"src.picosh.dev/pkg/store/storedefs"
	"src.picosh.dev/pkg/telnet"
)

var logger = logutil.GetLogger("[shell] ")

// DefaultPrompt is used when the PROMPT setting is absent. "{cwd}" is replaced
// with the working directory, then variables are expanded from the settings.
const DefaultPrompt = `$GRN$HOSTNAME$NORM:{cwd} picosh\$ `

// DefaultFlushTimeout bounds how long shutdown waits for telnet clients to
// take their buffered output.
const DefaultFlushTimeout = 2 * time.Second

// Size of the queue of lines typed while a command runs.
const inputQueueSize = 64

// Config configures a Shell. Settings is required.
type Config struct {
	// The local terminal; nil to serve telnet clients only.
	Console  mux.ConsoleIO
	Settings *settings.Store
	History  *histfile.Store
	Logins   storedefs.Store

	Handshake telnet.HandshakeConfig
	Idle      time.Duration
	// Listen and TelnetHost are passed on to the telnetd command.
	Listen       func(addr *net.TCPAddr) (*net.TCPListener, error)
	TelnetHost   string
	FlushTimeout time.Duration
}

// Shell ties the multiplexer, the dispatcher and the commands together.
type Shell struct {
	cfg  Config
	mux  *mux.Mux
	disp *dispatch.Dispatcher

	// A second view of the settings file without a memo, for lookups made
	// by the multiplexer while a command may be running.
	live *settings.Store

	input   chan mux.Event
	backlog []mux.Event
	// Closed when the console has exited; ReadLine then reports EOF.
	eof     chan struct{}
	exiting bool

	mu  sync.Mutex
	job *job

	// Set while running a script; ReadLine reads from it.
	script *bufio.Scanner
}

// New creates a Shell.
func New(cfg Config) *Shell {
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	sh := &Shell{
		cfg:   cfg,
		live:  settings.New(cfg.Settings.Path(), settings.Options{Includes: true}),
		input: make(chan mux.Event, inputQueueSize),
		eof:   make(chan struct{}),
	}
	sh.disp = dispatch.New(dispatch.Config{Settings: cfg.Settings, IO: sh})

	muxCfg := mux.Config{
		Console:   cfg.Console,
		Editor:    edit.Config{Commands: sh.disp.Names},
		Password:  func() string { return sh.live.Get(builtins.PasswordKey, "") },
		Banner:    sh.banner,
		Handshake: cfg.Handshake,
		Idle:      cfg.Idle,
		// Lines read by a running command, such as passwords, stay out of
		// the history.
		DeferHistory: true,
	}
	if cfg.History != nil {
		muxCfg.History = cfg.History
	}
	if cfg.Logins != nil {
		muxCfg.Logins = cfg.Logins
	}
	sh.mux = mux.New(muxCfg)

	builtins.Register(sh.disp, builtins.Deps{
		Settings: cfg.Settings,
		History:  cfg.History,
		Mux:      sh.mux,
		Logins:   cfg.Logins,
		Listen:   cfg.Listen,
		Host:     cfg.TelnetHost,
	})
	return sh
}

// Mux returns the multiplexer of the shell.
func (sh *Shell) Mux() *mux.Mux { return sh.mux }

// Dispatcher returns the dispatcher of the shell.
func (sh *Shell) Dispatcher() *dispatch.Dispatcher { return sh.disp }

// Execute runs one command line, as if it had been typed on the console.
func (sh *Shell) Execute(ctx context.Context, line string) (dispatch.Status, error) {
	return sh.disp.Execute(ctx, line, nil)
}

// StartTelnet starts the telnet listener on port.
func (sh *Shell) StartTelnet(ctx context.Context, port int) error {
	_, err := sh.Execute(ctx, fmt.Sprintf("telnetd --port=%d", port))
	return err
}

// Prompt returns the prompt, expanded for the current working directory.
func (sh *Shell) Prompt() string {
	tmpl := sh.cfg.Settings.Get("PROMPT", DefaultPrompt)
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "?"
	}
	return parse.Expand(strings.ReplaceAll(tmpl, "{cwd}", cwd), sh.cfg.Settings)
}

func (sh *Shell) banner() string {
	host := sh.live.Get(builtins.HostnameKey, "")
	if host == "" {
		host, _ = os.Hostname()
	}
	return "\n" + msgs.Format("welcome", host, runtime.GOOS, buildinfo.FullVersion(), runtime.GOARCH) + "\n"
}

// QuerySize asks the console for its size. The reply is consumed by the
// console editor.
func (sh *Shell) QuerySize() { sh.mux.WriteTo(nil, term.SizeQuery) }

// WriteText implements dispatch.IOContext.
func (sh *Shell) WriteText(text string) { sh.mux.Send(text) }

// ReadLine implements dispatch.IOContext. While a script runs it returns the
// next line of the script; otherwise the next line typed in any session.
func (sh *Shell) ReadLine(ctx context.Context) (string, error) {
	if sh.script != nil {
		if sh.script.Scan() {
			return strings.TrimRight(sh.script.Text(), "\r"), nil
		}
		if err := sh.script.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	select {
	case ev := <-sh.input:
		return ev.Line, nil
	default:
	}
	select {
	case ev := <-sh.input:
		return ev.Line, nil
	case <-sh.eof:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close flushes buffered output for up to FlushTimeout and closes the
// multiplexer, and with it the listener, all sessions and output files.
func (sh *Shell) Close() error {
	if sh.mux.FlushUntil(time.Now().Add(sh.cfg.FlushTimeout)) {
		logger.Warn("output still buffered at shutdown")
	}
	return sh.mux.Close()
}
