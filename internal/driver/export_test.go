package driver

// SetModuleRoot points module lookups at a test directory.
func (c *SystemChecker) SetModuleRoot(dir string) { c.moduleRoot = dir }
