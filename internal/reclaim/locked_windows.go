//go:build windows

package reclaim

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// checkLock opens path for append and closes it again. This fails with a
// sharing violation while the output device still holds the file.
func checkLock(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

func isPlatformLock(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, windows.ERROR_ACCESS_DENIED)
}
