package mux

import (
	"bufio"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/google/uuid"

	"src.picosh.dev/pkg/edit"
	"src.picosh.dev/pkg/telnet"
)

// Kind is the kind of a Session.
type Kind int

// Possible values of Kind.
const (
	Console Kind = iota
	Telnet
	InputFile
	OutputFile
)

var kindNames = [...]string{"console", "telnet", "input-file", "output-file"}

func (k Kind) String() string {
	if 0 <= k && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Session is one input or output endpoint. Its state is owned by the Mux that
// created it; the exported methods only return fields that never change.
type Session struct {
	id   uuid.UUID
	kind Kind
	// Remote address for Telnet, path for files.
	addr string

	closer io.Closer
	rc     syscall.RawConn
	authed bool
	auth   telnet.Auth
	filter telnet.Filter
	ed     *edit.Editor
	// Bytes not yet accepted by the socket.
	out []byte

	file   *os.File
	reader *bufio.Reader

	closed bool
}

func newSession(kind Kind, addr string) *Session {
	return &Session{id: uuid.New(), kind: kind, addr: addr}
}

func newTelnetSession(conn *net.TCPConn) (*Session, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	s := newSession(Telnet, conn.RemoteAddr().String())
	s.closer = conn
	s.rc = rc
	return s, nil
}

// ID returns the unique identifier of the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Kind returns the kind of the session.
func (s *Session) Kind() Kind { return s.kind }

// Addr returns the remote address of a telnet session or the path of a file.
func (s *Session) Addr() string { return s.addr }

func (s *Session) String() string {
	if s.addr == "" {
		return s.kind.String()
	}
	return s.kind.String() + " " + s.addr
}

// sessionWriter delivers editor echo to a single telnet session. It is only
// used with the Mux lock held.
type sessionWriter struct {
	m *Mux
	s *Session
}

func (w sessionWriter) Write(p []byte) (int, error) {
	w.m.queue(w.s, p)
	return len(p), nil
}
