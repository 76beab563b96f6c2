package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"bioreader/internal/config"
	"bioreader/internal/driver"
	"bioreader/internal/sdk"
)

// CheckLibrary locates the vendor SDK library and returns its path when
// found. The simulated driver needs no library.
func CheckLibrary(cfg *config.Config) (Result, string) {
	const name = "SDK library"

	if cfg.Device.Driver == "simulated" {
		return Result{Name: name, Passed: true, Detail: "simulated (no library required)"}, ""
	}
	lib := cfg.Device.Library
	if lib == "" {
		lib = sdk.LibraryName
	}
	path, err := driver.LocateLibrary(lib)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%v (install with 'bioreader sdk sync <path>')", err)}, ""
	}
	return Result{Name: name, Passed: true, Detail: path}, path
}

// CheckDriver reports vendor driver presence.
func CheckDriver(ctx context.Context, checker driver.Checker) Result {
	const name = "Reader driver"

	if checker == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !checker.Installed(ctx) {
		return Result{Name: name, Detail: "not detected (install the iDBio driver package)"}
	}
	return Result{Name: name, Passed: true, Detail: "Installed"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := checkAccess(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStore reports whether the configured template store can be used.
func CheckStore(cfg *config.Config) Result {
	const name = "Template store"

	if err := cfg.RequireStore(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	switch cfg.Store.Backend {
	case "sqlite":
		dir := filepath.Dir(cfg.Store.SQLitePath)
		if r := CheckDirectoryAccess(name, dir); !r.Passed {
			return r
		}
		return Result{Name: name, Passed: true, Detail: "sqlite " + cfg.Store.SQLitePath}
	default:
		return Result{Name: name, Passed: true, Detail: "rest " + cfg.Store.URL}
	}
}
