//go:build unix

package reclaim

import (
	"errors"

	"golang.org/x/sys/unix"
)

// checkLock is a no-op: unlinking depends on the directory, not on open
// handles or the file's own mode.
func checkLock(string) error { return nil }

func isPlatformLock(err error) bool {
	return errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY) ||
		errors.Is(err, unix.EACCES) ||
		errors.Is(err, unix.EPERM)
}
