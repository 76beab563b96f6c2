//go:build linux

package hotplug

import (
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()
	if err := matcher.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	tests := []struct {
		name  string
		event netlink.UEvent
		want  bool
	}{
		{"tty add", netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "tty"}}, true},
		{"tty remove", netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "tty"}}, true},
		{"tty change", netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"SUBSYSTEM": "tty"}}, false},
		{"block add", netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.Evaluate(tt.event); got != tt.want {
				t.Fatalf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToEventFallsBackToDevpath(t *testing.T) {
	evt := toEvent(netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-1/1-1:1.0/tty/ttyACM0"},
	})
	if evt.Action != ActionRemove || evt.DevName != "ttyACM0" {
		t.Fatalf("event = %+v", evt)
	}
}

func TestMonitorStopWithoutStart(t *testing.T) {
	m := New(&fakeTarget{}, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatal("monitor should not be running")
	}
}
