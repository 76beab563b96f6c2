package discovery_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"bioreader/internal/discovery"
	"bioreader/internal/logging"
	"bioreader/internal/sdk"
)

var testOptions = discovery.Options{
	Keywords:      []string{"idbio", "fingerprint", "biometric"},
	ProbeSettle:   500 * time.Millisecond,
	ProbeInit:     300 * time.Millisecond,
	ProbeFailure:  100 * time.Millisecond,
	ProbeTeardown: 500 * time.Millisecond,
}

func newFinder(ports ...discovery.Port) (*discovery.Finder, *[]time.Duration) {
	f := discovery.NewWithEnumerator(discovery.StaticEnumerator(ports), testOptions, logging.NewNop())
	var waits []time.Duration
	f.SetSleep(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})
	return f, &waits
}

func TestFindMatchesLabelCaseInsensitively(t *testing.T) {
	f, _ := newFinder(
		discovery.Port{SystemPath: `\Device\Serial0`, PortName: "COM1", FriendlyName: "Communications Port (COM1)"},
		discovery.Port{SystemPath: `\Device\USBSER000`, PortName: "COM4", FriendlyName: "Control iD IDBIO Reader (COM4)"},
		discovery.Port{SystemPath: `\Device\USBSER001`, PortName: "COM5", FriendlyName: "USB Fingerprint Device"},
	)
	sim := sdk.NewSimulator()

	port, err := f.Find(context.Background(), sim)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if port != "COM4" {
		t.Fatalf("port = %q, want first keyword match COM4", port)
	}
	if calls := sim.Calls(); len(calls) != 0 {
		t.Fatalf("label match must not touch the SDK, calls = %v", calls)
	}
}

func TestListFallsBackToSystemPathLabel(t *testing.T) {
	f, _ := newFinder(discovery.Port{SystemPath: `\Device\Serial0`, PortName: "COM1"})
	ports, err := f.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if ports[0].FriendlyName != `\Device\Serial0` {
		t.Fatalf("label = %q", ports[0].FriendlyName)
	}
}

func TestFindProbesWhenNoLabelMatches(t *testing.T) {
	f, waits := newFinder(
		discovery.Port{SystemPath: `\Device\Serial0`, PortName: "COM3"},
		discovery.Port{SystemPath: `\Device\Serial1`, PortName: "COM4"},
		discovery.Port{SystemPath: `\Device\Serial2`, PortName: "COM5"},
	)
	sim := sdk.NewSimulator()
	sim.SetPortResponse("COM4", sdk.Success)

	port, err := f.Find(context.Background(), sim)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if port != "COM4" {
		t.Fatalf("port = %q, want COM4", port)
	}
	wantCalls := []string{
		"terminate",
		"set_port COM3", "init", "terminate",
		"set_port COM4", "init", "terminate",
	}
	if got := sim.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Fatalf("calls = %v, want %v", got, wantCalls)
	}
	wantWaits := []time.Duration{
		500 * time.Millisecond,
		300 * time.Millisecond, 100 * time.Millisecond,
		300 * time.Millisecond, 500 * time.Millisecond,
	}
	if !reflect.DeepEqual(*waits, wantWaits) {
		t.Fatalf("waits = %v, want %v", *waits, wantWaits)
	}
	if sim.Initialized() {
		t.Fatal("probe must leave the SDK terminated")
	}
}

func TestFindProbeAcceptsAlreadyInitialized(t *testing.T) {
	f, _ := newFinder(discovery.Port{PortName: "COM7"})
	sim := sdk.NewSimulator()
	sim.SetPortResponse("COM7", sdk.WarningAlreadyInit)

	port, err := f.Find(context.Background(), sim)
	if err != nil || port != "COM7" {
		t.Fatalf("Find = %q, %v", port, err)
	}
}

func TestFindNoResponderReturnsErrNoDeviceFound(t *testing.T) {
	tests := []struct {
		name  string
		ports []discovery.Port
	}{
		{"no ports", nil},
		{"no responder", []discovery.Port{{PortName: "COM3"}, {PortName: "COM4"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newFinder(tt.ports...)
			sim := sdk.NewSimulator()
			sim.SetPortResponse("COM9", sdk.Success)

			_, err := f.Find(context.Background(), sim)
			if !errors.Is(err, discovery.ErrNoDeviceFound) {
				t.Fatalf("expected ErrNoDeviceFound, got %v", err)
			}
		})
	}
}

func TestFindStopsProbingWhenContextEnds(t *testing.T) {
	f := discovery.NewWithEnumerator(discovery.StaticEnumerator{{PortName: "COM3"}}, testOptions, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Find(ctx, sdk.NewSimulator())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
