// Package mux implements the session multiplexer of the shell.
//
// A Mux owns the local console, the telnet listener and sessions, and any
// input and output files. It is driven by repeated calls to Poll, which never
// block except while greeting a newly accepted telnet client. Input from every
// interactive source goes through that source's line editor; output sent with
// Send goes to every sink.
package mux

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"src.picosh.dev/pkg/cli/term"
	"src.picosh.dev/pkg/edit"
	"src.picosh.dev/pkg/logutil"
	"src.picosh.dev/pkg/msgs"
	"src.picosh.dev/pkg/passwd"
	"src.picosh.dev/pkg/store/storedefs"
	"src.picosh.dev/pkg/sys"
	"src.picosh.dev/pkg/telnet"
)

var logger = logutil.GetLogger("[mux] ")

// DefaultOutputCap is the number of unsent bytes kept for a telnet session
// that is not reading its output.
const DefaultOutputCap = 80

// DefaultIdle is how long ReadInput sleeps when no input is available.
const DefaultIdle = 20 * time.Millisecond

const readSize = 1024

// History is where submitted lines are recorded and recalled from.
type History interface {
	edit.History
	Add(text string)
}

// LoginRecorder records telnet connection attempts.
type LoginRecorder interface {
	AddLogin(l storedefs.Login) (int, error)
}

// Config configures a Mux. All fields are optional.
type Config struct {
	Console ConsoleIO
	History History
	// Template for the editors of the console and of telnet sessions. The
	// History field is replaced with the History above.
	Editor edit.Config
	// When set, submitted lines are not added to History; the owner calls
	// Record for the lines it runs as commands.
	DeferHistory bool
	// Password returns the stored hash of the telnet password. When it is nil
	// or returns "", every login is rejected.
	Password func() string
	// Verify checks a password against a stored hash. Defaults to
	// passwd.Verify.
	Verify func(plain, stored string) (bool, error)
	Logins LoginRecorder
	// Banner returns the text sent to a telnet client once it has logged in.
	Banner    func() string
	Handshake telnet.HandshakeConfig
	OutputCap int
	Idle      time.Duration
	Now       func() time.Time
}

// EventKind is the kind of an Event.
type EventKind int

// Possible values of EventKind.
const (
	// A line was entered or read from an input file.
	Line EventKind = iota
	// The exit byte was typed, or the console reached EOF.
	Exit
	// Ctrl-C was typed.
	Interrupt
	// The line was discarded and the prompt should be shown again.
	Reprompt
	// A telnet client logged in.
	Joined
	// A logged-in telnet client went away.
	Left
)

var eventKindNames = [...]string{"line", "exit", "interrupt", "reprompt", "joined", "left"}

func (k EventKind) String() string {
	if 0 <= k && int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// Event is something that happened on a session during a Poll.
type Event struct {
	Kind    EventKind
	Session *Session
	Line    string
}

// Mux multiplexes the sessions of the shell. Its methods are safe for
// concurrent use, so that a running command can send output while another
// goroutine keeps polling for input.
type Mux struct {
	mu  sync.Mutex
	cfg Config

	console *Session

	listener *net.TCPListener
	listenRC syscall.RawConn

	sessions []*Session
	inputs   []*Session
	outputs  []*Session

	buf []byte
}

// New creates a Mux.
func New(cfg Config) *Mux {
	if cfg.Verify == nil {
		cfg.Verify = passwd.Verify
	}
	if cfg.Handshake == (telnet.HandshakeConfig{}) {
		cfg.Handshake = telnet.DefaultHandshake
	}
	if cfg.OutputCap <= 0 {
		cfg.OutputCap = DefaultOutputCap
	}
	if cfg.Idle <= 0 {
		cfg.Idle = DefaultIdle
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.History != nil {
		cfg.Editor.History = cfg.History
	}
	if cfg.Editor.Now == nil {
		cfg.Editor.Now = cfg.Now
	}
	m := &Mux{cfg: cfg, buf: make([]byte, readSize)}
	if cfg.Console != nil {
		m.console = newSession(Console, "")
		m.console.ed = edit.New(cfg.Console, cfg.Editor)
	}
	return m
}

// ConsoleSession returns the session of the console, or nil if there is no
// console.
func (m *Mux) ConsoleSession() *Session { return m.console }

// Poll makes one pass over all input sources and returns what happened. In
// order, it reads one line from the first input file, stopping there if there
// was one; then all available console input; then input from every telnet
// session. Last, a pending telnet connection is accepted and greeted, which
// blocks for up to the handshake timeouts.
func (m *Mux) Poll() []Event {
	events, _ := m.poll()
	return events
}

// ReadInput polls until there are events or ctx is done. It sleeps between
// passes that saw no input at all.
func (m *Mux) ReadInput(ctx context.Context) ([]Event, error) {
	for {
		events, active := m.poll()
		if len(events) > 0 {
			return events, nil
		}
		if active {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.cfg.Idle):
		}
	}
}

func (m *Mux) poll() ([]Event, bool) {
	m.mu.Lock()
	if s, line, ok := m.readInputFile(); ok {
		m.mu.Unlock()
		return []Event{{Kind: Line, Session: s, Line: line}}, true
	}
	var events []Event
	active := m.pollConsole(&events)
	if m.pollSessions(&events) {
		active = true
	}
	m.tick(&events)
	m.reap()
	l := m.listener
	rc := m.listenRC
	m.mu.Unlock()

	if l != nil && m.acceptReady(rc) {
		active = true
		m.accept(l)
	}
	return events, active
}

func (m *Mux) readInputFile() (*Session, string, bool) {
	for len(m.inputs) > 0 {
		s := m.inputs[0]
		line, err := s.reader.ReadString('\n')
		if line != "" {
			return s, strings.TrimRight(line, "\r\n"), true
		}
		if !errors.Is(err, io.EOF) {
			logger.Warn("reading input file", "path", s.addr, "err", err)
		}
		s.file.Close()
		m.inputs = m.inputs[1:]
	}
	return nil, "", false
}

func (m *Mux) pollConsole(events *[]Event) bool {
	s := m.console
	if s == nil || s.closed {
		return false
	}
	n, err := m.cfg.Console.ReadAvailable(m.buf)
	for _, b := range m.buf[:n] {
		m.handle(s, s.ed.Feed(b), events)
	}
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logger.Error("reading console", "err", err)
		}
		s.closed = true
		*events = append(*events, Event{Kind: Exit, Session: s})
	}
	return n > 0
}

func (m *Mux) pollSessions(events *[]Event) bool {
	active := false
	for _, s := range m.sessions {
		if s.closed {
			continue
		}
		ready, err := sys.PollConn(s.rc, false, 0)
		if err != nil {
			m.drop(s, "poll failed", err, events)
			continue
		}
		if ready.Err {
			m.drop(s, "exceptional condition", nil, events)
			continue
		}
		if !ready.In {
			continue
		}
		n, err := sys.ReadNonblock(s.rc, m.buf)
		if errors.Is(err, sys.ErrWouldBlock) {
			continue
		} else if err != nil {
			m.drop(s, "read failed", err, events)
			continue
		} else if n == 0 {
			m.drop(s, "EOF", nil, events)
			continue
		}
		active = true
		data := s.filter.Filter(m.buf[:n])
		if !s.authed {
			m.authenticate(s, data, events)
			continue
		}
		for _, b := range data {
			m.handle(s, s.ed.Feed(b), events)
		}
	}
	return active
}

// Abandons escape sequences that have timed out.
func (m *Mux) tick(events *[]Event) {
	if m.console != nil && !m.console.closed {
		m.handle(m.console, m.console.ed.Tick(), events)
	}
	for _, s := range m.sessions {
		if s.authed && !s.closed {
			m.handle(s, s.ed.Tick(), events)
		}
	}
}

// Record adds a typed line to the history. Empty lines are ignored.
func (m *Mux) Record(line string) {
	if line != "" && m.cfg.History != nil {
		m.cfg.History.Add(line)
	}
}

func (m *Mux) handle(s *Session, r edit.Result, events *[]Event) {
	switch r.Kind {
	case edit.Submit:
		if !m.cfg.DeferHistory {
			m.Record(r.Line)
		}
		*events = append(*events, Event{Kind: Line, Session: s, Line: r.Line})
	case edit.Exit:
		*events = append(*events, Event{Kind: Exit, Session: s})
	case edit.Interrupt:
		*events = append(*events, Event{Kind: Interrupt, Session: s})
	case edit.Reprompt:
		*events = append(*events, Event{Kind: Reprompt, Session: s})
	case edit.EscapeTimeout:
		notice := msgs.Format("not-implemented", r.Kind)
		m.writeTo(s, notice+strings.Repeat("\b", len(notice)))
	case edit.Size, edit.Attributes:
		logger.Debug("terminal report", "session", s, "kind", r.Kind)
	}
}

func (m *Mux) authenticate(s *Session, data []byte, events *[]Event) {
	pw, done := s.auth.Feed(data)
	if !done {
		return
	}
	if !m.checkPassword(pw) {
		sys.WriteNonblock(s.rc, []byte(msgs.Format("wrong-password")+"\r\n"))
		m.recordLogin(s, storedefs.Rejected)
		m.close(s, "wrong password", nil)
		return
	}
	s.authed = true
	s.ed = edit.New(sessionWriter{m, s}, m.cfg.Editor)
	s.filter.Size = s.ed.SetSize
	m.recordLogin(s, storedefs.Accepted)
	logger.Info("telnet login", "session", s)
	if m.cfg.Banner != nil {
		m.queue(s, []byte(NormalizeNewlines(m.cfg.Banner())))
	}
	m.queue(s, []byte(term.SizeQuery))
	*events = append(*events, Event{Kind: Joined, Session: s})
}

func (m *Mux) checkPassword(pw string) bool {
	stored := ""
	if m.cfg.Password != nil {
		stored = m.cfg.Password()
	}
	if stored == "" {
		logger.Warn(msgs.Format("telnet-no-password"))
		return false
	}
	ok, err := m.cfg.Verify(pw, stored)
	if err != nil {
		logger.Error("verifying telnet password", "err", err)
		return false
	}
	return ok
}

func (m *Mux) recordLogin(s *Session, outcome storedefs.Outcome) {
	if m.cfg.Logins == nil {
		return
	}
	_, err := m.cfg.Logins.AddLogin(storedefs.Login{
		Time: m.cfg.Now(), Remote: s.addr, Session: s.id.String(), Outcome: outcome})
	if err != nil {
		logger.Warn("recording login", "err", err)
	}
}

func (m *Mux) acceptReady(rc syscall.RawConn) bool {
	ready, err := sys.PollConn(rc, false, 0)
	if err != nil {
		logger.Warn("polling listener", "err", err)
		return false
	}
	return ready.In
}

// Accepts and greets a client. Called without the lock, since the handshake
// blocks.
func (m *Mux) accept(l *net.TCPListener) {
	conn, err := l.AcceptTCP()
	if err != nil {
		logger.Warn("accepting telnet connection", "err", err)
		return
	}
	s, err := newTelnetSession(conn)
	if err != nil {
		conn.Close()
		logger.Warn("setting up telnet session", "err", err)
		return
	}
	logger.Info(msgs.Format("connection-from", s.addr))
	if err := telnet.Handshake(conn, m.cfg.Handshake); err != nil {
		logger.Warn(msgs.Format("no-handshake-reply", s.addr), "err", err)
		conn.Close()
		m.mu.Lock()
		m.recordLogin(s, storedefs.NoHandshake)
		m.mu.Unlock()
		return
	}
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
}

// Send writes text to every sink: the console, the output files and every
// logged-in telnet session, in that order. Bare LFs are converted to CR LF.
// Bytes a session cannot take now are buffered, keeping only the last
// OutputCap bytes. It returns whether any session still has buffered bytes.
func (m *Mux) Send(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send(text)
}

// Flush tries to write the buffered bytes of every session and returns
// whether any remain.
func (m *Mux) Flush() bool { return m.Send("") }

// FlushUntil calls Flush until nothing is buffered or the deadline passes.
func (m *Mux) FlushUntil(deadline time.Time) bool {
	for m.Flush() {
		if !time.Now().Before(deadline) {
			return true
		}
		time.Sleep(m.cfg.Idle)
	}
	return false
}

func (m *Mux) send(text string) bool {
	if text != "" {
		text = NormalizeNewlines(text)
		if m.console != nil {
			m.cfg.Console.Write([]byte(text))
		}
		for _, f := range m.outputs {
			if f.closed {
				continue
			}
			if _, err := f.file.WriteString(text); err != nil {
				m.notice(msgs.Format("file-write-failed", err))
				m.close(f, "write failed", err)
			}
		}
	}
	pending := false
	for _, s := range m.sessions {
		if s.closed || !s.authed {
			continue
		}
		s.out = append(s.out, text...)
		m.flush(s)
		if len(s.out) > 0 {
			pending = true
		}
	}
	m.reap()
	return pending
}

// WriteTo writes text to a single session, or to the console if s is nil.
func (m *Mux) WriteTo(s *Session, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		s = m.console
	}
	if s != nil {
		m.writeTo(s, NormalizeNewlines(text))
	}
}

func (m *Mux) writeTo(s *Session, text string) {
	switch s.kind {
	case Console:
		m.cfg.Console.Write([]byte(text))
	case Telnet:
		m.queue(s, []byte(text))
	case OutputFile:
		s.file.WriteString(text)
	}
}

// Writes to the console only.
func (m *Mux) notice(text string) {
	if m.console != nil {
		m.cfg.Console.Write([]byte(NormalizeNewlines(text + "\n")))
	}
}

func (m *Mux) queue(s *Session, p []byte) {
	if s.closed {
		return
	}
	s.out = append(s.out, p...)
	m.flush(s)
}

func (m *Mux) flush(s *Session) {
	if len(s.out) > 0 {
		ready, err := sys.PollConn(s.rc, true, 0)
		if err != nil || ready.Err {
			m.close(s, "poll failed", err)
			return
		}
		if ready.Out {
			n, err := sys.WriteNonblock(s.rc, s.out)
			if err != nil {
				m.notice(msgs.Format("socket-send-failed", err))
				m.close(s, "write failed", err)
				return
			}
			s.out = append(s.out[:0], s.out[n:]...)
		}
	}
	if over := len(s.out) - m.cfg.OutputCap; over > 0 {
		s.out = append(s.out[:0], s.out[over:]...)
	}
}

// NormalizeNewlines converts every LF not preceded by CR to CR LF.
func NormalizeNewlines(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

func (m *Mux) drop(s *Session, reason string, err error, events *[]Event) {
	if s.authed {
		*events = append(*events, Event{Kind: Left, Session: s})
	} else {
		m.recordLogin(s, storedefs.Disconnected)
	}
	m.close(s, reason, err)
}

func (m *Mux) close(s *Session, reason string, err error) {
	if s.closed {
		return
	}
	s.closed = true
	if s.closer != nil {
		s.closer.Close()
	}
	if s.file != nil {
		s.file.Close()
	}
	logger.Info(msgs.Format("connection-closed", s), "reason", reason, "err", err)
}

// Removes closed sessions and files.
func (m *Mux) reap() {
	m.sessions = removeClosed(m.sessions)
	m.outputs = removeClosed(m.outputs)
}

func removeClosed(ss []*Session) []*Session {
	kept := ss[:0]
	for _, s := range ss {
		if !s.closed {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(ss); i++ {
		ss[i] = nil
	}
	return kept
}

// CloseSession closes a telnet session.
func (m *Mux) CloseSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flush(s)
	m.close(s, "logout", nil)
	m.reap()
}

// Sessions returns the telnet sessions that are logged in.
func (m *Mux) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ss []*Session
	for _, s := range m.sessions {
		if s.authed {
			ss = append(ss, s)
		}
	}
	return ss
}

// Size returns the terminal geometry of an interactive session, or of the
// console if s is nil.
func (m *Mux) Size(s *Session) (width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ed := m.editor(s); ed != nil {
		return ed.Size()
	}
	return edit.DefaultWidth, edit.DefaultHeight
}

// SetSize sets the terminal geometry of an interactive session, or of the
// console if s is nil.
func (m *Mux) SetSize(s *Session, width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ed := m.editor(s); ed != nil {
		ed.SetSize(width, height)
	}
}

// TermType returns the device attributes reported by the terminal of an
// interactive session, or of the console if s is nil.
func (m *Mux) TermType(s *Session) (primary, secondary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ed := m.editor(s); ed != nil {
		return ed.TermType()
	}
	return "", ""
}

func (m *Mux) editor(s *Session) *edit.Editor {
	if s == nil {
		s = m.console
	}
	if s == nil {
		return nil
	}
	return s.ed
}

// Close closes the listener, all sessions and all files. The console is left
// to its owner.
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.listener != nil {
		err = m.listener.Close()
		m.listener = nil
	}
	for _, ss := range [][]*Session{m.sessions, m.inputs, m.outputs} {
		for _, s := range ss {
			m.close(s, "shutdown", nil)
		}
	}
	m.sessions, m.inputs, m.outputs = nil, nil, nil
	return err
}
