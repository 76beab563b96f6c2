//go:build !windows

package driver

import "context"

func (c *SystemChecker) installed(context.Context) bool {
	return c.modulesLoaded()
}
