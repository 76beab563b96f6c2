package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrLibraryNotFound is returned when the vendor SDK library cannot be located.
var ErrLibraryNotFound = errors.New("vendor sdk library not found")

// Checker reports vendor driver presence.
type Checker interface {
	Installed(ctx context.Context) bool
}

// Static is a Checker with a fixed answer.
type Static bool

func (s Static) Installed(context.Context) bool { return bool(s) }

// SystemChecker inspects the host for the vendor driver.
type SystemChecker struct {
	// Modules lists kernel modules that count as the driver on Linux. Empty
	// means the reader needs no dedicated module.
	Modules []string

	moduleRoot string
	run        func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewChecker returns a checker for the current platform.
func NewChecker(modules []string) *SystemChecker {
	return &SystemChecker{
		Modules:    modules,
		moduleRoot: "/sys/module",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Installed reports whether the vendor driver was found.
func (c *SystemChecker) Installed(ctx context.Context) bool {
	return c.installed(ctx)
}

func (c *SystemChecker) modulesLoaded() bool {
	if len(c.Modules) == 0 {
		return true
	}
	for _, mod := range c.Modules {
		mod = strings.TrimSpace(mod)
		if mod == "" {
			continue
		}
		if info, err := os.Stat(filepath.Join(c.moduleRoot, mod)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// LibraryFileName returns the platform file name for a library base name.
func LibraryFileName(base string) string {
	if filepath.Ext(base) != "" {
		return base
	}
	switch runtime.GOOS {
	case "windows":
		return base + ".dll"
	case "darwin":
		return base + ".dylib"
	default:
		return base + ".so"
	}
}

// LocateLibrary finds the vendor SDK library. Explicit paths are checked as
// given; bare names are searched in the executable's directory, then PATH.
func LocateLibrary(name string) (string, error) {
	file := LibraryFileName(name)
	if strings.ContainsRune(file, os.PathSeparator) || strings.ContainsRune(file, '/') {
		if fileExists(file) {
			return file, nil
		}
		return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, file)
	}

	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	dirs = append(dirs, filepath.SplitList(os.Getenv("PATH"))...)
	if runtime.GOOS == "linux" {
		dirs = append(dirs, filepath.SplitList(os.Getenv("LD_LIBRARY_PATH"))...)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, file)
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched executable directory and PATH)", ErrLibraryNotFound, file)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
