//go:build windows

package preflight

import "os"

// Windows ACLs are not reflected in mode bits, so probe with a real file.
func checkAccess(path string) error {
	f, err := os.CreateTemp(path, ".bioreader-access-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
