package device_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"bioreader/internal/device"
	"bioreader/internal/logging"
	"bioreader/internal/sdk"
)

type staticDriver bool

func (d staticDriver) Installed(context.Context) bool { return bool(d) }

type stubFinder struct {
	port  string
	err   error
	calls int
}

func (f *stubFinder) Find(_ context.Context, b sdk.Binding) (string, error) {
	f.calls++
	b.Terminate()
	return f.port, f.err
}

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newSession(t *testing.T, sim *sdk.Simulator, driver bool, finder device.PortFinder, opts device.Options) (*device.Session, *sleepRecorder) {
	t.Helper()
	if opts.InitSettle == 0 {
		opts.InitSettle = 800 * time.Millisecond
	}
	if opts.AlreadyInitSettle == 0 {
		opts.AlreadyInitSettle = 500 * time.Millisecond
	}
	if opts.ReinitSettle == 0 {
		opts.ReinitSettle = 500 * time.Millisecond
	}
	s := device.NewSession(sim, staticDriver(driver), finder, opts, logging.NewNop())
	rec := &sleepRecorder{}
	s.SetSleep(rec.sleep)
	return s, rec
}

func TestEnsureReadyInitCodes(t *testing.T) {
	tests := []struct {
		name      string
		code      sdk.Code
		wantSleep time.Duration
	}{
		{"success", sdk.Success, 800 * time.Millisecond},
		{"already initialized", sdk.WarningAlreadyInit, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := sdk.NewSimulator()
			sim.QueueInit(tt.code)
			s, rec := newSession(t, sim, true, nil, device.Options{})

			if err := s.EnsureReady(context.Background(), ""); err != nil {
				t.Fatalf("EnsureReady: %v", err)
			}
			if s.State() != device.StateReady {
				t.Fatalf("state = %v, want ready", s.State())
			}
			if !reflect.DeepEqual(rec.waits, []time.Duration{tt.wantSleep}) {
				t.Fatalf("settle waits = %v", rec.waits)
			}
		})
	}
}

func TestEnsureReadyIsNoOpWhenReady(t *testing.T) {
	sim := sdk.NewSimulator()
	s, _ := newSession(t, sim, true, nil, device.Options{})
	for i := 0; i < 3; i++ {
		if err := s.EnsureReady(context.Background(), ""); err != nil {
			t.Fatalf("EnsureReady #%d: %v", i, err)
		}
	}
	if got := sim.Calls(); !reflect.DeepEqual(got, []string{"init"}) {
		t.Fatalf("calls = %v, want a single init", got)
	}
}

func TestEnsureReadySetsExplicitPortFirst(t *testing.T) {
	sim := sdk.NewSimulator()
	s, _ := newSession(t, sim, true, nil, device.Options{Port: "COM9"})

	if err := s.EnsureReady(context.Background(), "COM3"); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if got := sim.Calls(); !reflect.DeepEqual(got, []string{"set_port COM3", "init"}) {
		t.Fatalf("calls = %v", got)
	}
	if s.Port() != "COM3" {
		t.Fatalf("port = %q", s.Port())
	}
}

func TestEnsureReadyNoDeviceDisambiguatesDriver(t *testing.T) {
	t.Run("driver missing", func(t *testing.T) {
		sim := sdk.NewSimulator()
		sim.QueueInit(sdk.ErrorNoDevice)
		s, _ := newSession(t, sim, false, nil, device.Options{})

		err := s.EnsureReady(context.Background(), "")
		if !errors.Is(err, device.ErrDriverMissing) {
			t.Fatalf("expected driver missing, got %v", err)
		}
		if s.State() != device.StateFaulted {
			t.Fatalf("state = %v, want faulted", s.State())
		}
	})

	t.Run("driver present", func(t *testing.T) {
		sim := sdk.NewSimulator()
		sim.QueueInit(sdk.ErrorNoDevice)
		s, _ := newSession(t, sim, true, nil, device.Options{})

		err := s.EnsureReady(context.Background(), "")
		if !errors.Is(err, device.ErrDeviceNotFound) {
			t.Fatalf("expected device not found, got %v", err)
		}
		if errors.Is(err, device.ErrDriverMissing) {
			t.Fatal("device-not-found must not match driver-missing")
		}
	})

	t.Run("messages differ", func(t *testing.T) {
		missing := device.NewError(device.KindDriverMissing, "init", sdk.ErrorNoDevice, nil)
		notFound := device.NewError(device.KindDeviceNotFound, "init", sdk.ErrorNoDevice, nil)
		if missing.Error() == notFound.Error() {
			t.Fatalf("expected distinct messages, both %q", missing.Error())
		}
		if device.Remediation(missing) == device.Remediation(notFound) {
			t.Fatal("expected distinct remediation")
		}
	})
}

func TestEnsureReadyFallsBackToDiscovery(t *testing.T) {
	sim := sdk.NewSimulator()
	sim.QueueInit(sdk.ErrorNoDevice)
	finder := &stubFinder{port: "COM4"}
	s, _ := newSession(t, sim, true, finder, device.Options{Discover: true})

	if err := s.EnsureReady(context.Background(), ""); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if finder.calls != 1 {
		t.Fatalf("finder calls = %d", finder.calls)
	}
	if s.Port() != "COM4" {
		t.Fatalf("port = %q, want COM4", s.Port())
	}
	want := []string{"init", "terminate", "set_port COM4", "init"}
	if got := sim.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestEnsureReadyDiscoveryFailureIsDeviceNotFound(t *testing.T) {
	sim := sdk.NewSimulator()
	sim.QueueInit(sdk.ErrorNoDevice)
	finder := &stubFinder{err: errors.New("no device found")}
	s, _ := newSession(t, sim, true, finder, device.Options{Discover: true})

	err := s.EnsureReady(context.Background(), "")
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Fatalf("expected device not found, got %v", err)
	}
}

func TestEnsureReadyGenericCode(t *testing.T) {
	sim := sdk.NewSimulator()
	sim.QueueInit(sdk.ErrorCommUSB)
	s, _ := newSession(t, sim, true, nil, device.Options{})

	err := s.EnsureReady(context.Background(), "")
	if !errors.Is(err, device.ErrGenericDevice) {
		t.Fatalf("expected generic error, got %v", err)
	}
	code, ok := device.CodeOf(err)
	if !ok || code != sdk.ErrorCommUSB {
		t.Fatalf("code = %v, %v", code, ok)
	}
	if device.KindOf(err) != device.KindGeneric {
		t.Fatalf("kind = %q", device.KindOf(err))
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	sim := sdk.NewSimulator()
	s, _ := newSession(t, sim, true, nil, device.Options{})

	s.Terminate()
	s.Terminate()
	if s.State() != device.StateTerminated {
		t.Fatalf("state = %v", s.State())
	}
	if err := s.EnsureReady(context.Background(), ""); err != nil {
		t.Fatalf("EnsureReady after terminate: %v", err)
	}
	s.Terminate()
	if s.State() != device.StateTerminated {
		t.Fatalf("state = %v", s.State())
	}
}

func TestReinitializeTerminatesSettlesAndInits(t *testing.T) {
	sim := sdk.NewSimulator()
	s, rec := newSession(t, sim, true, nil, device.Options{Port: "COM5"})
	if err := s.EnsureReady(context.Background(), ""); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	rec.waits = nil

	if err := s.Reinitialize(context.Background()); err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}
	want := []string{"set_port COM5", "init", "terminate", "set_port COM5", "init"}
	if got := sim.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(rec.waits, []time.Duration{500 * time.Millisecond, 800 * time.Millisecond}) {
		t.Fatalf("waits = %v", rec.waits)
	}
}

func TestInvalidateForcesReinit(t *testing.T) {
	sim := sdk.NewSimulator()
	s, _ := newSession(t, sim, true, nil, device.Options{})
	if err := s.EnsureReady(context.Background(), ""); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	s.Invalidate("reader unplugged")
	if s.State() != device.StateFaulted {
		t.Fatalf("state = %v", s.State())
	}
	if st := s.Status(); st.LastError == "" {
		t.Fatal("expected invalidation reason in status")
	}
	if err := s.EnsureReady(context.Background(), ""); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if got := len(sim.Calls()); got != 2 {
		t.Fatalf("expected a second init, calls = %v", sim.Calls())
	}
}

func TestInfoRequiresReady(t *testing.T) {
	sim := sdk.NewSimulator()
	s, _ := newSession(t, sim, true, nil, device.Options{})
	if _, err := s.Info(); !errors.Is(err, device.ErrDeviceBusyOrNotInitialized) {
		t.Fatalf("expected not-initialized error, got %v", err)
	}
	if err := s.EnsureReady(context.Background(), ""); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	info, err := s.Info()
	if err != nil || info.Model == "" {
		t.Fatalf("Info = %+v, %v", info, err)
	}
}
