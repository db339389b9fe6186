package mux

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"src.picosh.dev/pkg/cli/term"
	"src.picosh.dev/pkg/must"
	"src.picosh.dev/pkg/passwd"
	"src.picosh.dev/pkg/store"
	"src.picosh.dev/pkg/store/storedefs"
	"src.picosh.dev/pkg/sys"
	"src.picosh.dev/pkg/telnet"
	"src.picosh.dev/pkg/testutil"
)

var ack = []byte{telnet.IAC, telnet.WILL, telnet.OptTermType}

type telnetFixture struct {
	m      *Mux
	c      *fakeConsole
	logins storedefs.Store
	client net.Conn
}

func setupTelnet(t *testing.T, ackTimeout time.Duration) *telnetFixture {
	hash := must.OK1(passwd.Hash("secret"))
	f := &telnetFixture{c: &fakeConsole{}, logins: store.MustTempStore(t)}
	f.m = New(Config{
		Console:   f.c,
		Password:  func() string { return hash },
		Logins:    f.logins,
		Banner:    func() string { return "Welcome\n" },
		Handshake: telnet.HandshakeConfig{Settle: time.Millisecond, AckTimeout: ackTimeout},
	})
	t.Cleanup(func() { f.m.Close() })
	l := must.Listen()
	must.OK(f.m.Listen(l))
	f.client = must.Dial(l.Addr())
	t.Cleanup(func() { f.client.Close() })
	return f
}

// Runs the client side of the handshake while the Mux accepts the client.
func (f *telnetFixture) connect(t *testing.T) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- ackUntilPrompt(f.client) }()
	f.pollUntil(t, func() bool { return f.numSessions() == 1 })
	if err := <-done; err != nil {
		t.Fatalf("client handshake: %v", err)
	}
}

func ackUntilPrompt(conn net.Conn) error {
	conn.SetReadDeadline(time.Now().Add(testutil.Scaled(5 * time.Second)))
	defer conn.SetReadDeadline(time.Time{})
	var got []byte
	buf := make([]byte, 256)
	for !bytes.Contains(got, []byte(telnet.PasswordPrompt)) {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		got = append(got, buf[:n]...)
		if !bytes.Contains(got, []byte(telnet.PasswordPrompt)) {
			conn.Write(ack)
		}
	}
	return nil
}

func (f *telnetFixture) login(t *testing.T) *Session {
	t.Helper()
	f.connect(t)
	f.client.Write([]byte("secret\r\x00"))
	e := f.pollFor(t, Joined)
	readUntil(t, f.client, term.SizeQuery)
	return e.Session
}

func (f *telnetFixture) numSessions() int {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	return len(f.m.sessions)
}

func (f *telnetFixture) pollUntil(t *testing.T, cond func() bool) []Event {
	t.Helper()
	var events []Event
	deadline := time.Now().Add(testutil.Scaled(5 * time.Second))
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out; events so far: %v", events)
		}
		events = append(events, f.m.Poll()...)
		time.Sleep(time.Millisecond)
	}
	return events
}

func (f *telnetFixture) pollFor(t *testing.T, kind EventKind) Event {
	t.Helper()
	deadline := time.Now().Add(testutil.Scaled(5 * time.Second))
	for time.Now().Before(deadline) {
		for _, e := range f.m.Poll() {
			if e.Kind == kind {
				return e
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %v event", kind)
	return Event{}
}

func readUntil(t *testing.T, conn net.Conn, want string) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testutil.Scaled(5 * time.Second)))
	defer conn.SetReadDeadline(time.Time{})
	var got []byte
	buf := make([]byte, 256)
	for !bytes.Contains(got, []byte(want)) {
		n, err := conn.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			t.Fatalf("reading until %q: %v; got %q", want, err, got)
		}
	}
	return string(got)
}

func readToEOF(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testutil.Scaled(5 * time.Second)))
	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("reading to EOF: %v", err)
	}
	return string(got)
}

func outcomes(t *testing.T, st storedefs.Store) []storedefs.Outcome {
	t.Helper()
	logins := must.OK1(st.Logins(0))
	var o []storedefs.Outcome
	for _, l := range logins {
		o = append(o, l.Outcome)
	}
	return o
}

func TestTelnet_Login(t *testing.T) {
	f := setupTelnet(t, testutil.Scaled(2*time.Second))
	s := f.login(t)
	if s.Kind() != Telnet || s.Addr() != f.client.LocalAddr().String() {
		t.Errorf("session = %v", s)
	}
	if n := len(f.m.Sessions()); n != 1 {
		t.Errorf("Sessions() has %d entries, want 1", n)
	}
	if diff := cmp.Diff([]storedefs.Outcome{storedefs.Accepted}, outcomes(t, f.logins)); diff != "" {
		t.Errorf("logins (-want +got):\n%s", diff)
	}

	f.client.Write([]byte("ls\r\x00"))
	e := f.pollFor(t, Line)
	if e.Line != "ls" || e.Session != s {
		t.Errorf("got line %q from %v", e.Line, e.Session)
	}
	readUntil(t, f.client, "ls\r\n")

	f.m.Send("out\n")
	readUntil(t, f.client, "out\r\n")
	if got := f.c.out.String(); got != "out\r\n" {
		t.Errorf("console got %q", got)
	}

	f.client.Write([]byte("\x03"))
	if e := f.pollFor(t, Interrupt); e.Session != s {
		t.Errorf("interrupt from %v", e.Session)
	}

	f.client.Close()
	if e := f.pollFor(t, Left); e.Session != s {
		t.Errorf("left event for %v", e.Session)
	}
	if f.numSessions() != 0 {
		t.Errorf("session not removed")
	}
}

func TestTelnet_BannerAndSizeQuery(t *testing.T) {
	f := setupTelnet(t, testutil.Scaled(2*time.Second))
	f.connect(t)
	f.client.Write([]byte("secret\r\n"))
	f.pollFor(t, Joined)
	got := readUntil(t, f.client, term.SizeQuery)
	if !strings.HasPrefix(got, "Welcome\r\n") {
		t.Errorf("client got %q, want banner first", got)
	}
}

func TestTelnet_WrongPassword(t *testing.T) {
	f := setupTelnet(t, testutil.Scaled(2*time.Second))
	f.connect(t)
	f.client.Write([]byte("nope\r"))
	f.pollUntil(t, func() bool { return f.numSessions() == 0 })
	if got := readToEOF(t, f.client); !strings.HasSuffix(got, "wrong.\r\n") {
		t.Errorf("client got %q", got)
	}
	if diff := cmp.Diff([]storedefs.Outcome{storedefs.Rejected}, outcomes(t, f.logins)); diff != "" {
		t.Errorf("logins (-want +got):\n%s", diff)
	}
}

func TestTelnet_NoPasswordSet(t *testing.T) {
	f := setupTelnet(t, testutil.Scaled(2*time.Second))
	f.m.cfg.Password = func() string { return "" }
	f.connect(t)
	f.client.Write([]byte("secret\r"))
	f.pollUntil(t, func() bool { return f.numSessions() == 0 })
	if diff := cmp.Diff([]storedefs.Outcome{storedefs.Rejected}, outcomes(t, f.logins)); diff != "" {
		t.Errorf("logins (-want +got):\n%s", diff)
	}
}

func TestTelnet_NoHandshakeReply(t *testing.T) {
	f := setupTelnet(t, 20*time.Millisecond)
	// The client never answers; the Mux blocks in Poll for one ack timeout.
	f.pollUntil(t, func() bool { return len(outcomes(t, f.logins)) > 0 })
	if f.numSessions() != 0 {
		t.Errorf("session kept after failed handshake")
	}
	if diff := cmp.Diff([]storedefs.Outcome{storedefs.NoHandshake}, outcomes(t, f.logins)); diff != "" {
		t.Errorf("logins (-want +got):\n%s", diff)
	}
	readToEOF(t, f.client)
}

func TestTelnet_DisconnectBeforeLogin(t *testing.T) {
	f := setupTelnet(t, testutil.Scaled(2*time.Second))
	f.connect(t)
	f.client.Close()
	events := f.pollUntil(t, func() bool { return f.numSessions() == 0 })
	if len(events) != 0 {
		t.Errorf("unexpected events %v", events)
	}
	if diff := cmp.Diff([]storedefs.Outcome{storedefs.Disconnected}, outcomes(t, f.logins)); diff != "" {
		t.Errorf("logins (-want +got):\n%s", diff)
	}
}

func TestTelnet_NAWS(t *testing.T) {
	f := setupTelnet(t, testutil.Scaled(2*time.Second))
	s := f.login(t)
	f.client.Write([]byte{telnet.IAC, telnet.SB, telnet.OptNAWS, 0, 100, 0, 40, telnet.IAC, telnet.SE})
	f.pollUntil(t, func() bool {
		w, h := f.m.Size(s)
		return w == 100 && h == 40
	})
}

func TestTelnet_ExitAndCloseSession(t *testing.T) {
	f := setupTelnet(t, testutil.Scaled(2*time.Second))
	f.login(t)
	f.client.Write([]byte{0x01})
	e := f.pollFor(t, Exit)
	f.m.CloseSession(e.Session)
	readToEOF(t, f.client)
	if f.numSessions() != 0 {
		t.Errorf("session not removed")
	}
}

func TestTelnet_StopListening(t *testing.T) {
	f := setupTelnet(t, testutil.Scaled(2*time.Second))
	if f.m.ListenAddr() == nil {
		t.Fatalf("ListenAddr is nil while listening")
	}
	must.OK(f.m.StopListening())
	if f.m.ListenAddr() != nil {
		t.Errorf("ListenAddr not nil after StopListening")
	}
	f.m.Poll()
	if f.numSessions() != 0 {
		t.Errorf("client accepted after StopListening")
	}
}

func TestSend_TruncatesStalledSession(t *testing.T) {
	m, _, _ := setupConsole(t)
	r, w := must.Pipe()
	defer r.Close()
	rc := must.OK1(w.SyscallConn())
	// Fill the pipe so that nothing more can be written.
	chunk := bytes.Repeat([]byte("."), 4096)
	filled := 0
	for _, size := range []int{len(chunk), 1} {
		for {
			n, err := sys.WriteNonblock(rc, chunk[:size])
			must.OK(err)
			if n == 0 {
				break
			}
			filled += n
		}
	}

	s := newSession(Telnet, "stalled")
	s.closer, s.rc, s.authed = w, rc, true
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()

	if !m.Send(strings.Repeat("x", 100) + "tail\n") {
		t.Errorf("Send reported nothing pending for a stalled session")
	}
	if len(s.out) != DefaultOutputCap || !strings.HasSuffix(string(s.out), "tail\r\n") {
		t.Errorf("buffer = %q (%d bytes), want last %d bytes", s.out, len(s.out), DefaultOutputCap)
	}

	must.OK1(io.ReadFull(r, make([]byte, filled)))
	if m.FlushUntil(time.Now().Add(testutil.Scaled(2 * time.Second))) {
		t.Errorf("bytes still pending after the reader drained the pipe")
	}
	got := make([]byte, DefaultOutputCap)
	must.OK1(io.ReadFull(r, got))
	if !strings.HasSuffix(string(got), "xxtail\r\n") {
		t.Errorf("reader got %q", got)
	}
}
