package sys

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsReadOnlyFS reports whether err was caused by a read-only filesystem.
func IsReadOnlyFS(err error) bool {
	return errors.Is(err, unix.EROFS)
}

// RemountWritable remounts the filesystem mounted at dir read-write.
func RemountWritable(dir string) error {
	return unix.Mount("", dir, "", unix.MS_REMOUNT, "")
}
