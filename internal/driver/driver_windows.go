//go:build windows

package driver

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sys/windows/registry"
)

var pnputilMarkers = []string{"control id", "idbio", "controlidbio"}

var serviceKeys = []string{"controlidbio", "controlid", "ControliDBio", "ControlID"}

var softwareKeys = []string{`SOFTWARE\ControlID`, `SOFTWARE\WOW6432Node\ControlID`}

func (c *SystemChecker) installed(ctx context.Context) bool {
	if c.pnputilListsDriver(ctx) {
		return true
	}
	for _, name := range serviceKeys {
		if keyExists(`SYSTEM\CurrentControlSet\Services\` + name) {
			return true
		}
	}
	for _, path := range softwareKeys {
		if keyExists(path) {
			return true
		}
	}
	return false
}

func (c *SystemChecker) pnputilListsDriver(ctx context.Context) bool {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := c.run(runCtx, "pnputil", "/enum-drivers")
	if err != nil {
		return false
	}
	text := strings.ToLower(string(out))
	for _, marker := range pnputilMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func keyExists(path string) bool {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	key.Close()
	return true
}
