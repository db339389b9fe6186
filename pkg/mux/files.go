package mux

import (
	"bufio"
	"fmt"
	"net"
	"os"

	"src.picosh.dev/pkg/msgs"
)

// OpenInputFile queues a file whose lines are returned by Poll, one per pass,
// before any other input. Files are read in the order they were opened.
func (m *Mux) OpenInputFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf(msgs.Format("input-file-failed", "%w"), err)
	}
	s := newSession(InputFile, path)
	s.file = f
	s.reader = bufio.NewReader(f)
	m.mu.Lock()
	m.inputs = append(m.inputs, s)
	m.mu.Unlock()
	return nil
}

// OpenOutputFile creates a file that receives a copy of everything sent.
func (m *Mux) OpenOutputFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf(msgs.Format("output-file-failed", "%w"), err)
	}
	s := newSession(OutputFile, path)
	s.file = f
	m.mu.Lock()
	m.outputs = append(m.outputs, s)
	m.mu.Unlock()
	return nil
}

// CloseOutputFiles closes all output files and returns their paths.
func (m *Mux) CloseOutputFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for _, s := range m.outputs {
		paths = append(paths, s.addr)
		m.close(s, "closed", nil)
	}
	m.outputs = nil
	return paths
}

// Listen starts accepting telnet clients on l. A previous listener is closed.
func (m *Mux) Listen(l *net.TCPListener) error {
	rc, err := l.SyscallConn()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener != nil {
		m.listener.Close()
	}
	m.listener, m.listenRC = l, rc
	return nil
}

// StopListening closes the telnet listener. Sessions stay open.
func (m *Mux) StopListening() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return nil
	}
	err := m.listener.Close()
	m.listener, m.listenRC = nil, nil
	return err
}

// ListenAddr returns the address of the telnet listener, or nil.
func (m *Mux) ListenAddr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}
