// Package must wraps calls whose failure means the test (or, rarely, the
// program) cannot continue. Each helper panics on error.
package must

import (
	"net"
	"os"
	"path/filepath"
)

// OK panics if err is not nil.
func OK(err error) {
	if err != nil {
		panic(err)
	}
}

// OK1 returns v, or panics if err is not nil.
func OK1[T any](v T, err error) T {
	OK(err)
	return v
}

// Pipe returns the two ends of a new os.Pipe.
func Pipe() (r, w *os.File) {
	r, w, err := os.Pipe()
	OK(err)
	return r, w
}

// Chdir changes the working directory.
func Chdir(dir string) { OK(os.Chdir(dir)) }

// Listen opens a TCP listener on a free loopback port, the way telnet tests
// stand in for the device's network interface.
func Listen() *net.TCPListener {
	return OK1(net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}))
}

// Dial connects to a TCP address, typically one returned by Listen.
func Dial(addr net.Addr) net.Conn {
	return OK1(net.Dial(addr.Network(), addr.String()))
}

// ReadFileString returns the content of a file.
func ReadFileString(name string) string {
	return string(OK1(os.ReadFile(name)))
}

// MkdirAll creates each directory with its missing parents.
func MkdirAll(names ...string) {
	for _, name := range names {
		OK(os.MkdirAll(name, 0o700))
	}
}

// WriteFile writes data to a file, creating missing parent directories.
func WriteFile(name, data string) {
	OK(os.MkdirAll(filepath.Dir(name), 0o700))
	OK(os.WriteFile(name, []byte(data), 0o600))
}
