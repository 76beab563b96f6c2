package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bioreader/internal/driver"
	"bioreader/internal/fileutil"
	"bioreader/internal/sdk"
)

// SyncResult reports what SyncLibrary did.
type SyncResult struct {
	Path    string `json:"path"`
	Updated bool   `json:"updated"`
}

// SyncLibrary copies the vendor SDK library from source into destDir, where
// LocateLibrary finds it next to the executable. An identical copy already in
// place is left alone. An empty destDir means the executable's directory.
func SyncLibrary(source, destDir string) (SyncResult, error) {
	if source == "" {
		return SyncResult{}, errors.New("sdk source path is required")
	}
	info, err := os.Stat(source)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sdk source: %w", err)
	}
	if info.IsDir() {
		source = filepath.Join(source, driver.LibraryFileName(sdk.LibraryName))
	}
	if destDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return SyncResult{}, fmt.Errorf("resolve executable directory: %w", err)
		}
		destDir = filepath.Dir(exe)
	}
	dst := filepath.Join(destDir, filepath.Base(source))
	if fileutil.SameContent(source, dst) {
		return SyncResult{Path: dst}, nil
	}
	if err := fileutil.InstallVerified(source, dst, 0o755); err != nil {
		return SyncResult{}, fmt.Errorf("install %s: %w", dst, err)
	}
	return SyncResult{Path: dst, Updated: true}, nil
}
