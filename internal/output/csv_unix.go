//go:build unix

package output

import (
	"os"

	"golang.org/x/sys/unix"
)

// flockAppend opens path for append (creating it if needed), takes an
// exclusive OS-level advisory lock for the duration of fn, and closes
// the file on return. The lock is released automatically when the fd
// closes, so multiple engine processes sharing a CSV path can't
// interleave rows even though csvMu only protects against in-process
// races.
func flockAppend(path string, fn func(f *os.File) error) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn(f)
}
