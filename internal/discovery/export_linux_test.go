package discovery

import "context"

// SysfsLabels runs the sysfs labeler against root with a fixed device index.
func SysfsLabels(root string, index map[string]string, ports []Port) map[string]string {
	l := &sysfsLabeler{root: root, index: func(context.Context) map[string]string { return index }}
	return l.Labels(context.Background(), ports)
}
