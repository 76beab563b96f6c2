package preflight

import (
	"context"

	"bioreader/internal/config"
	"bioreader/internal/driver"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Status summarizes SDK readiness.
type Status struct {
	LibraryFound    bool     `json:"library_found"`
	LibraryPath     string   `json:"library_path,omitempty"`
	DriverInstalled bool     `json:"driver_installed"`
	Ready           bool     `json:"ready"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	Checks          []Result `json:"checks"`
}

// Check runs every check. Ready is true when all of them pass; ErrorMessage
// carries the first failure.
func Check(ctx context.Context, cfg *config.Config, checker driver.Checker) Status {
	if cfg == nil {
		return Status{ErrorMessage: "configuration unavailable"}
	}
	var st Status
	lib, path := CheckLibrary(cfg)
	st.LibraryFound = lib.Passed
	st.LibraryPath = path

	drv := CheckDriver(ctx, checker)
	st.DriverInstalled = drv.Passed

	st.Checks = []Result{
		lib,
		drv,
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckStore(cfg),
	}
	st.Ready = true
	for _, r := range st.Checks {
		if !r.Passed {
			st.Ready = false
			if st.ErrorMessage == "" {
				st.ErrorMessage = r.Name + ": " + r.Detail
			}
		}
	}
	return st
}
