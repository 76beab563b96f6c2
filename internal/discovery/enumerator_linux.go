//go:build linux

package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
)

// SystemEnumerator lists ports through go.bug.st/serial and relabels them
// from the sysfs device tree.
func SystemEnumerator() Enumerator {
	return chainEnumerator{base: usbEnumerator{}, labelers: []labeler{newSysfsLabeler("/sys")}}
}

// sysfsLabeler finds each tty's device directory with the go-udev crawler
// and reads USB descriptor strings from its ancestors.
type sysfsLabeler struct {
	root  string
	index func(ctx context.Context) map[string]string
}

func newSysfsLabeler(root string) *sysfsLabeler {
	return &sysfsLabeler{root: root, index: crawlTTYs}
}

func (l *sysfsLabeler) Labels(ctx context.Context, ports []Port) map[string]string {
	devices := l.index(ctx)
	labels := make(map[string]string, len(ports))
	for _, port := range ports {
		kobj, ok := devices[filepath.Base(port.PortName)]
		if !ok {
			continue
		}
		if label := sysfsLabel(l.root, kobj); label != "" {
			labels[port.PortName] = label
		}
	}
	return labels
}

// crawlTTYs maps tty device names (ttyACM0) to their sysfs directories.
func crawlTTYs(ctx context.Context) map[string]string {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{Env: map[string]string{"DEVNAME": "^tty"}})
	if err := rules.Compile(); err != nil {
		return nil
	}

	queue := make(chan crawler.Device)
	errs := make(chan error, 1)
	quit := crawler.ExistingDevices(queue, errs, rules)
	defer close(quit)

	found := make(map[string]string)
	for {
		select {
		case <-ctx.Done():
			return found
		case <-errs:
			return found
		case dev, ok := <-queue:
			if !ok {
				return found
			}
			found[filepath.Base(dev.Env["DEVNAME"])] = dev.KObj
		}
	}
}

// sysfsLabel prefers "manufacturer product" from the nearest USB device,
// then the USB interface string, then the bound driver name.
func sysfsLabel(root, kobj string) string {
	dir := kobj
	if !strings.HasPrefix(dir, root) {
		dir = filepath.Join(root, dir)
	}

	var iface string
	for d := dir; strings.HasPrefix(d, root) && d != root; d = filepath.Dir(d) {
		if iface == "" {
			iface = readAttr(d, "interface")
		}
		product := readAttr(d, "product")
		if product == "" {
			continue
		}
		if mfr := readAttr(d, "manufacturer"); mfr != "" {
			return mfr + " " + product
		}
		return product
	}
	if iface != "" {
		return iface
	}
	if target, err := os.Readlink(filepath.Join(dir, "device", "driver")); err == nil {
		return filepath.Base(target)
	}
	return ""
}

func readAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
