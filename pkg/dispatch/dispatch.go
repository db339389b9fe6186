// Package dispatch runs parsed command lines.
//
// Commands are looked up by verb in a registry made of groups, probed in the
// order they were created. A verb that names a setting is an alias: the line
// is rewritten with the setting's value and parsed once more.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"src.picosh.dev/pkg/edit"
	"src.picosh.dev/pkg/logutil"
	"src.picosh.dev/pkg/msgs"
	"src.picosh.dev/pkg/mux"
	"src.picosh.dev/pkg/parse"
)

var logger = logutil.GetLogger("[dispatch] ")

// Status is the outcome of a command.
type Status int

// Possible values of Status.
const (
	StatusOK Status = iota
	StatusFailed
	StatusNotFound
	StatusInterrupted
)

var statusNames = [...]string{"ok", "failed", "not-found", "interrupted"}

func (s Status) String() string {
	if 0 <= s && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

var (
	// ErrExit is returned by a command to leave the shell, or to close the
	// telnet session it was typed in.
	ErrExit = errors.New("exit requested")
	// ErrRestart is returned by a command to restart the shell.
	ErrRestart = errors.New("restart requested")
	// ErrMissingOperand is returned by a command called with too few
	// arguments.
	ErrMissingOperand = errors.New("missing operand")
)

// Handler implements a command.
type Handler func(fm *Frame) error

// IOContext is the interactive I/O a command runs against.
type IOContext interface {
	// WriteText writes to every sink.
	WriteText(text string)
	// ReadLine returns the next line of input typed while the command runs.
	ReadLine(ctx context.Context) (string, error)
}

// Settings is the part of the settings store used to resolve aliases and
// variables.
type Settings interface {
	Lookup(key string) (string, bool)
	ResetMemo()
}

// Config configures a Dispatcher.
type Config struct {
	Settings Settings
	IO       IOContext
	// Limit of nested command substitutions, parse.MaxDepth if 0.
	MaxDepth int
}

type group struct {
	name     string
	names    []string
	handlers map[string]Handler
}

// Dispatcher maps verbs to handlers and runs command lines.
type Dispatcher struct {
	cfg    Config
	groups []*group
	parser *parse.Parser
}

// New creates a Dispatcher with no commands.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{cfg: cfg}
	d.parser = &parse.Parser{Exec: d, MaxDepth: cfg.MaxDepth}
	if cfg.Settings != nil {
		d.parser.Env = cfg.Settings
	}
	return d
}

// Register adds a command to a group, creating the group if needed. Groups
// are probed in the order they were created.
func (d *Dispatcher) Register(groupName, verb string, h Handler) {
	var g *group
	for _, candidate := range d.groups {
		if candidate.name == groupName {
			g = candidate
			break
		}
	}
	if g == nil {
		g = &group{name: groupName, handlers: make(map[string]Handler)}
		d.groups = append(d.groups, g)
	}
	if _, exists := g.handlers[verb]; !exists {
		g.names = append(g.names, verb)
	}
	g.handlers[verb] = h
}

// Lookup finds the handler of a verb.
func (d *Dispatcher) Lookup(verb string) (Handler, bool) {
	for _, g := range d.groups {
		if h, ok := g.handlers[verb]; ok {
			return h, true
		}
	}
	return nil, false
}

// Names returns the registered verbs in lookup order, without duplicates.
func (d *Dispatcher) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for _, g := range d.groups {
		for _, name := range g.names {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Groups returns the group names in lookup order.
func (d *Dispatcher) Groups() []string {
	names := make([]string, len(d.groups))
	for i, g := range d.groups {
		names[i] = g.name
	}
	return names
}

// GroupNames returns the verbs of a group in registration order.
func (d *Dispatcher) GroupNames(groupName string) []string {
	for _, g := range d.groups {
		if g.name == groupName {
			return append([]string(nil), g.names...)
		}
	}
	return nil
}

// Execute runs a line typed in the given session. Output and errors are
// written through the IOContext. The only errors returned are ErrExit and
// ErrRestart.
func (d *Dispatcher) Execute(ctx context.Context, line string, origin *mux.Session) (Status, error) {
	if d.cfg.Settings != nil {
		// Settings are re-read for every line, so that edits made outside the
		// shell take effect.
		d.cfg.Settings.ResetMemo()
	}
	return d.run(ctx, line, strings.NewReader(""), textWriter{d.cfg.IO}, origin)
}

// Capture runs a line with its output captured. It implements
// parse.Executor, so that command substitutions go through the full
// dispatcher.
func (d *Dispatcher) Capture(ctx context.Context, line string) (string, error) {
	var buf bytes.Buffer
	_, err := d.run(ctx, line, strings.NewReader(""), &buf, originFrom(ctx))
	return buf.String(), err
}

func (d *Dispatcher) run(ctx context.Context, line string, in io.Reader, out io.Writer, origin *mux.Session) (Status, error) {
	ctx = withOrigin(ctx, origin)
	pl, err := d.parseWithAlias(ctx, line)
	if err != nil {
		if errors.Is(err, ErrExit) || errors.Is(err, ErrRestart) {
			return StatusFailed, err
		}
		if ctx.Err() != nil {
			return StatusInterrupted, nil
		}
		d.report(msgs.Format("parse-error", err))
		return StatusFailed, nil
	}
	if len(pl) == 0 {
		return StatusOK, nil
	}
	return d.runPipeline(ctx, pl, in, out, origin)
}

// parseWithAlias parses a line. If its first word names a setting, the line
// is rewritten with the setting's value replacing that word and parsed once
// more; the rewritten line is not checked for aliases again.
func (d *Dispatcher) parseWithAlias(ctx context.Context, line string) (parse.Pipeline, error) {
	if rewritten, ok := d.expandAlias(line); ok {
		logger.Debug("alias expanded", "line", line, "to", rewritten)
		line = rewritten
	}
	return d.parser.Parse(ctx, line)
}

func (d *Dispatcher) expandAlias(line string) (string, bool) {
	if d.cfg.Settings == nil {
		return "", false
	}
	tokens, err := parse.Tokenize(line)
	if err != nil || len(tokens) == 0 || tokens[0].Type != parse.Word {
		return "", false
	}
	verb := parse.Unquote(tokens[0].Text)
	if verb == "" {
		return "", false
	}
	alias, ok := d.cfg.Settings.Lookup(verb)
	if !ok || alias == "" {
		return "", false
	}
	trimmed := strings.TrimLeft(line, " \t")
	if i := strings.IndexByte(trimmed, ' '); i >= 0 {
		return alias + trimmed[i:], true
	}
	return alias, true
}

func (d *Dispatcher) runPipeline(ctx context.Context, pl parse.Pipeline, in io.Reader, out io.Writer, origin *mux.Session) (Status, error) {
	status := StatusOK
	input := in
	for i, st := range pl {
		stdin := input
		if st.Redir.Stdin != "" {
			f, err := os.Open(st.Redir.Stdin)
			if err != nil {
				d.report(msgs.Format("error", st.Verb(), err))
				return StatusFailed, nil
			}
			defer f.Close()
			stdin = f
		}

		var stdout io.Writer
		var buf *bytes.Buffer
		switch {
		case st.Redir.Stdout != "":
			flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if st.Redir.Append {
				flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
			}
			f, err := os.OpenFile(st.Redir.Stdout, flag, 0644)
			if err != nil {
				d.report(msgs.Format("error", st.Verb(), err))
				return StatusFailed, nil
			}
			defer f.Close()
			stdout = f
		case i == len(pl)-1:
			stdout = out
		default:
			buf = new(bytes.Buffer)
			stdout = buf
		}

		var err error
		status, err = d.runStage(ctx, st, stdin, stdout, origin)
		if err != nil {
			return status, err
		}
		if status == StatusInterrupted {
			return status, nil
		}
		if buf != nil {
			input = buf
		} else {
			input = strings.NewReader("")
		}
	}
	return status, nil
}

func (d *Dispatcher) runStage(ctx context.Context, st *parse.Stage, in io.Reader, out io.Writer, origin *mux.Session) (Status, error) {
	verb := st.Verb()
	h, ok := d.Lookup(verb)
	if !ok {
		d.report(msgs.Format("command-not-found", verb))
		return StatusNotFound, nil
	}
	fm := &Frame{ctx: ctx, Stage: st, In: in, Out: out, Origin: origin, d: d}
	err := h(fm)
	switch {
	case err == nil:
		if ctx.Err() != nil {
			return StatusInterrupted, nil
		}
		return StatusOK, nil
	case errors.Is(err, ErrExit), errors.Is(err, ErrRestart):
		return StatusOK, err
	case errors.Is(err, context.Canceled), errors.Is(err, edit.ErrInterrupt):
		return StatusInterrupted, nil
	case errors.Is(err, ErrMissingOperand):
		d.report(msgs.Format("missing-operand", verb))
	default:
		d.report(msgs.Format("error", verb, err))
	}
	return StatusFailed, nil
}

// Reports an error to the user.
func (d *Dispatcher) report(text string) {
	logger.Debug("command error", "text", text)
	if d.cfg.IO != nil {
		d.cfg.IO.WriteText(text + "\n")
	}
}

// textWriter adapts an IOContext to io.Writer.
type textWriter struct{ io IOContext }

func (w textWriter) Write(p []byte) (int, error) {
	if w.io != nil {
		w.io.WriteText(string(p))
	}
	return len(p), nil
}

type originKey struct{}

func withOrigin(ctx context.Context, s *mux.Session) context.Context {
	if s == nil || originFrom(ctx) == s {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, s)
}

func originFrom(ctx context.Context) *mux.Session {
	s, _ := ctx.Value(originKey{}).(*mux.Session)
	return s
}
