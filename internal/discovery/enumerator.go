package discovery

import (
	"context"

	"go.bug.st/serial/enumerator"
)

// usbEnumerator lists ports through go.bug.st/serial and labels them with
// the USB product string.
type usbEnumerator struct{}

func (usbEnumerator) Ports(context.Context) ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	ports := make([]Port, 0, len(details))
	for _, d := range details {
		port := Port{SystemPath: d.Name, PortName: d.Name}
		if d.IsUSB {
			port.FriendlyName = d.Product
			port.VID = d.VID
			port.PID = d.PID
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// labeler resolves better labels for ports, keyed by PortName. Ports it
// cannot label are left out.
type labeler interface {
	Labels(ctx context.Context, ports []Port) map[string]string
}

// chainEnumerator enumerates with base and overrides labels with each
// labeler's results in order.
type chainEnumerator struct {
	base     Enumerator
	labelers []labeler
}

func (c chainEnumerator) Ports(ctx context.Context) ([]Port, error) {
	ports, err := c.base.Ports(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range c.labelers {
		labels := l.Labels(ctx, ports)
		for i := range ports {
			if label := labels[ports[i].PortName]; label != "" {
				ports[i].FriendlyName = label
			}
		}
	}
	for i := range ports {
		if ports[i].FriendlyName == "" {
			ports[i].FriendlyName = ports[i].SystemPath
		}
	}
	return ports, nil
}
