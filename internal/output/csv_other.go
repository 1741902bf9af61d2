//go:build !unix

package output

import "os"

// flockAppend on non-unix platforms degrades to the in-process csvMu
// alone; there is no portable advisory-lock primitive in x/sys for
// these builds. Single-process deployment is the expected case there.
func flockAppend(path string, fn func(f *os.File) error) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(f)
}
