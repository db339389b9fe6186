//go:build unix

package sys

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Ready describes the readiness of a file descriptor.
type Ready struct {
	// In is set when a read will not block. A peer that hung up is reported
	// as readable, so that the following read observes EOF.
	In bool
	// Out is set when a write will not block.
	Out bool
	// Err is set when the descriptor is in an exceptional state.
	Err bool
}

func pollFd(fd int, events int16, timeout time.Duration) (Ready, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		_, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Ready{}, err
		}
		break
	}
	re := fds[0].Revents
	return Ready{
		In:  re&(unix.POLLIN|unix.POLLHUP) != 0,
		Out: re&unix.POLLOUT != 0,
		Err: re&(unix.POLLERR|unix.POLLNVAL) != 0,
	}, nil
}

// WaitForRead blocks until any of the given files is ready to be read or
// timeout. A negative timeout means no timeout; a zero timeout makes it a
// pure readiness check. It returns a boolean array indicating which files are
// ready to be read and any possible error.
func WaitForRead(timeout time.Duration, files ...*os.File) (ready []bool, err error) {
	fds := make([]unix.PollFd, len(files))
	for i, file := range files {
		fds[i] = unix.PollFd{Fd: int32(file.Fd()), Events: unix.POLLIN}
	}
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	for {
		_, err = unix.Poll(fds, ms)
		if err != unix.EINTR {
			break
		}
	}
	ready = make([]bool, len(files))
	if err != nil {
		return ready, err
	}
	for i := range fds {
		ready[i] = fds[i].Revents&(unix.POLLIN|unix.POLLHUP) != 0
	}
	return ready, nil
}

// PollConn checks the readiness of the descriptor behind rc. When write is
// true, writability is checked as well as readability.
func PollConn(rc syscall.RawConn, write bool, timeout time.Duration) (Ready, error) {
	events := int16(unix.POLLIN)
	if write {
		events |= unix.POLLOUT
	}
	var ready Ready
	var perr error
	err := rc.Control(func(fd uintptr) {
		ready, perr = pollFd(int(fd), events, timeout)
	})
	if err != nil {
		return Ready{}, err
	}
	return ready, perr
}

// ReadNonblock reads whatever is immediately available from rc into p. It
// returns ErrWouldBlock when nothing is pending, and (0, nil) when the peer
// has closed the connection.
func ReadNonblock(rc syscall.RawConn, p []byte) (int, error) {
	var n int
	var rerr error
	err := rc.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), p)
		return true
	})
	if err != nil {
		return 0, err
	}
	if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK || rerr == unix.EINTR {
		return 0, ErrWouldBlock
	}
	if rerr != nil {
		return 0, rerr
	}
	return n, nil
}

// WriteNonblock writes as much of p to rc as the kernel accepts without
// blocking, and returns the number of bytes accepted.
func WriteNonblock(rc syscall.RawConn, p []byte) (int, error) {
	var n int
	var werr error
	err := rc.Write(func(fd uintptr) bool {
		n, werr = unix.Write(int(fd), p)
		return true
	})
	if err != nil {
		return 0, err
	}
	if werr == unix.EAGAIN || werr == unix.EWOULDBLOCK || werr == unix.EINTR {
		return 0, nil
	}
	if werr != nil {
		return 0, werr
	}
	return n, nil
}
