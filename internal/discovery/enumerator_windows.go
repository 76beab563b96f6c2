//go:build windows

package discovery

import (
	"context"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// SystemEnumerator lists ports from HARDWARE\DEVICEMAP\SERIALCOMM and
// labels them from the device enumeration tree. It falls back to
// go.bug.st/serial when the registry is unreadable.
func SystemEnumerator() Enumerator {
	return chainEnumerator{base: registryEnumerator{}, labelers: []labeler{registryLabeler{}}}
}

type registryEnumerator struct{}

func (registryEnumerator) Ports(ctx context.Context) ([]Port, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM`, registry.QUERY_VALUE)
	if err != nil {
		return usbEnumerator{}.Ports(ctx)
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}
	ports := make([]Port, 0, len(names))
	for _, name := range names {
		com, _, err := key.GetStringValue(name)
		if err != nil || com == "" {
			continue
		}
		ports = append(ports, Port{SystemPath: name, PortName: com})
	}
	return ports, nil
}

const enumRoot = `SYSTEM\CurrentControlSet\Enum`

type registryLabeler struct{}

// Labels walks Enum\<class>\<device>\<instance> once, matching each
// instance's Device Parameters\PortName. FriendlyName is preferred over
// DeviceDesc.
func (registryLabeler) Labels(ctx context.Context, ports []Port) map[string]string {
	wanted := make(map[string]bool, len(ports))
	for _, p := range ports {
		wanted[p.PortName] = true
	}
	labels := make(map[string]string)
	for _, class := range subkeys(enumRoot) {
		if ctx.Err() != nil || len(labels) == len(wanted) {
			return labels
		}
		classPath := enumRoot + `\` + class
		for _, dev := range subkeys(classPath) {
			devPath := classPath + `\` + dev
			for _, inst := range subkeys(devPath) {
				instPath := devPath + `\` + inst
				name := readString(instPath+`\Device Parameters`, "PortName")
				if !wanted[name] || labels[name] != "" {
					continue
				}
				label := readString(instPath, "FriendlyName")
				if label == "" {
					label = trimInfReference(readString(instPath, "DeviceDesc"))
				}
				labels[name] = label
			}
		}
	}
	return labels
}

func subkeys(path string) []string {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil
	}
	defer key.Close()
	names, err := key.ReadSubKeyNames(-1)
	if err != nil {
		return nil
	}
	return names
}

func readString(path, value string) string {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	defer key.Close()
	s, _, err := key.GetStringValue(value)
	if err != nil {
		return ""
	}
	return s
}

// DeviceDesc is often "@oem12.inf,%desc%;Readable Name".
func trimInfReference(desc string) string {
	if i := strings.LastIndex(desc, ";"); i >= 0 && strings.HasPrefix(desc, "@") {
		return desc[i+1:]
	}
	return desc
}
