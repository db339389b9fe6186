//go:build unix && !linux

package sys

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsReadOnlyFS reports whether err was caused by a read-only filesystem.
func IsReadOnlyFS(err error) bool {
	return errors.Is(err, unix.EROFS)
}

// RemountWritable is not supported outside Linux.
func RemountWritable(dir string) error {
	return errors.ErrUnsupported
}
