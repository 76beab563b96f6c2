package hotplug

import (
	"context"
	"errors"
	"testing"

	"bioreader/internal/device"
	"bioreader/internal/logging"
)

type fakeTarget struct {
	status      device.Status
	invalidated []string
	err         error
}

func (f *fakeTarget) Status() device.Status { return f.status }

func (f *fakeTarget) Invalidate(_ context.Context, reason string) error {
	f.invalidated = append(f.invalidated, reason)
	return f.err
}

func TestHandleInvalidatesOnlyActivePort(t *testing.T) {
	ready := device.Status{State: device.StateReady.String(), Port: "/dev/ttyACM0"}
	tests := []struct {
		name   string
		status device.Status
		event  Event
		want   int
	}{
		{"active port removed", ready, Event{Action: ActionRemove, DevName: "/dev/ttyACM0"}, 1},
		{"kernel devname without prefix", ready, Event{Action: ActionRemove, DevName: "ttyACM0"}, 1},
		{"other port removed", ready, Event{Action: ActionRemove, DevName: "/dev/ttyUSB0"}, 0},
		{"active port added", ready, Event{Action: ActionAdd, DevName: "/dev/ttyACM0"}, 0},
		{"session not ready", device.Status{State: "faulted", Port: "/dev/ttyACM0"}, Event{Action: ActionRemove, DevName: "/dev/ttyACM0"}, 0},
		{"auto-detected port unknown", device.Status{State: "ready"}, Event{Action: ActionRemove, DevName: "/dev/ttyACM0"}, 0},
		{"missing device name", ready, Event{Action: ActionRemove}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeTarget{status: tt.status}
			h := handler{target: target, logger: logging.NewNop()}
			h.handle(context.Background(), tt.event)
			if len(target.invalidated) != tt.want {
				t.Fatalf("invalidations = %v, want %d", target.invalidated, tt.want)
			}
		})
	}
}

func TestHandleToleratesInvalidateFailure(t *testing.T) {
	target := &fakeTarget{
		status: device.Status{State: "ready", Port: "/dev/ttyACM0"},
		err:    errors.New("worker stopped"),
	}
	h := handler{target: target, logger: logging.NewNop()}
	h.handle(context.Background(), Event{Action: ActionRemove, DevName: "/dev/ttyACM0"})
	if len(target.invalidated) != 1 {
		t.Fatalf("invalidations = %v", target.invalidated)
	}
}

func TestNilMonitorIsSafe(t *testing.T) {
	m := New(nil, nil)
	if m != nil {
		t.Fatal("expected nil monitor for nil target")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor: %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor reports running")
	}
}
