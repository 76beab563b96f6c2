package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bioreader/internal/logging"
	"bioreader/internal/sdk"
)

// State is the lifecycle state of the reader session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateTerminated
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateTerminated:
		return "terminated"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DriverChecker reports whether the vendor driver is installed. It only
// disambiguates a no-device init failure.
type DriverChecker interface {
	Installed(ctx context.Context) bool
}

// PortFinder locates the serial port the reader is attached to. It may run
// destructive init/terminate probes on the binding it is handed.
type PortFinder interface {
	Find(ctx context.Context, b sdk.Binding) (string, error)
}

// Options configures session timing and fallbacks.
type Options struct {
	// Port is set on the SDK before init. Empty lets the SDK auto-detect.
	Port              string
	InitSettle        time.Duration
	AlreadyInitSettle time.Duration
	ReinitSettle      time.Duration
	// Discover enables the PortFinder fallback when init reports no device
	// and the driver is installed.
	Discover bool
}

// Status is a point-in-time snapshot of the session.
type Status struct {
	State      string    `json:"state"`
	Port       string    `json:"port,omitempty"`
	Binding    string    `json:"binding"`
	LastCode   int       `json:"last_code"`
	LastError  string    `json:"last_error,omitempty"`
	ReadySince time.Time `json:"ready_since,omitempty"`
}

// Session wraps a Binding with an idempotent lifecycle. Methods that touch
// hardware must only be called from the owning Worker.
type Session struct {
	binding sdk.Binding
	driver  DriverChecker
	finder  PortFinder
	opts    Options
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error

	mu         sync.Mutex
	state      State
	port       string
	lastCode   sdk.Code
	lastErr    error
	readySince time.Time
}

// NewSession constructs a session. finder may be nil to disable discovery.
func NewSession(b sdk.Binding, driver DriverChecker, finder PortFinder, opts Options, logger *slog.Logger) *Session {
	return &Session{
		binding: b,
		driver:  driver,
		finder:  finder,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "device"),
		sleep:   Sleep,
	}
}

// SetSleep replaces the settle delay function, for tests.
func (s *Session) SetSleep(fn func(context.Context, time.Duration) error) {
	if fn != nil {
		s.sleep = fn
	}
}

// Binding exposes the underlying SDK binding to worker jobs.
func (s *Session) Binding() sdk.Binding { return s.binding }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Port returns the serial port the session was last bound to, if known.
func (s *Session) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Status returns a snapshot safe to read from any goroutine.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:      s.state.String(),
		Port:       s.port,
		Binding:    s.binding.Name(),
		LastCode:   int(s.lastCode),
		ReadySince: s.readySince,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// EnsureReady initializes the reader unless the session is already Ready.
// explicitPort overrides the configured port for this call.
func (s *Session) EnsureReady(ctx context.Context, explicitPort string) error {
	if s.State() == StateReady {
		return nil
	}
	port := explicitPort
	if port == "" {
		port = s.opts.Port
	}
	log := logging.WithContext(ctx, s.logger)
	s.setState(StateInitializing)

	if port != "" {
		if code := s.binding.SetSerialCommPort(port); code.IsError() {
			return s.fault(NewError(KindGeneric, "set port", code, nil), port)
		}
	}

	code := s.binding.Init()
	log.Debug("sdk init returned", logging.Int(logging.FieldCode, int(code)), logging.String(logging.FieldPort, port))
	switch {
	case code == sdk.Success:
		return s.ready(ctx, port, code, s.opts.InitSettle)
	case code == sdk.WarningAlreadyInit:
		log.Info("sdk already initialized, continuing", logging.String(logging.FieldPort, port))
		return s.ready(ctx, port, code, s.opts.AlreadyInitSettle)
	case code == sdk.ErrorNoDevice:
		return s.noDevice(ctx, port)
	default:
		return s.fault(NewError(KindGeneric, "init", code, nil), port)
	}
}

func (s *Session) noDevice(ctx context.Context, port string) error {
	log := logging.WithContext(ctx, s.logger)
	if s.driver == nil || !s.driver.Installed(ctx) {
		return s.fault(NewError(KindDriverMissing, "init", sdk.ErrorNoDevice, nil), port)
	}
	if !s.opts.Discover || s.finder == nil {
		return s.fault(NewError(KindDeviceNotFound, "init", sdk.ErrorNoDevice, nil), port)
	}

	log.Info("init reported no device, running port discovery",
		logging.String(logging.FieldEventType, "discovery_fallback"),
	)
	found, err := s.finder.Find(ctx, s.binding)
	if err != nil {
		return s.fault(NewError(KindDeviceNotFound, "discover", sdk.ErrorNoDevice, err), port)
	}
	if code := s.binding.SetSerialCommPort(found); code.IsError() {
		return s.fault(NewError(KindGeneric, "set port", code, nil), found)
	}
	code := s.binding.Init()
	if !code.Ready() {
		kind := KindGeneric
		if code == sdk.ErrorNoDevice {
			kind = KindDeviceNotFound
		}
		return s.fault(NewError(kind, "init", code, nil), found)
	}
	settle := s.opts.InitSettle
	if code == sdk.WarningAlreadyInit {
		settle = s.opts.AlreadyInitSettle
	}
	return s.ready(ctx, found, code, settle)
}

func (s *Session) ready(ctx context.Context, port string, code sdk.Code, settle time.Duration) error {
	s.mu.Lock()
	s.state = StateReady
	s.port = port
	s.lastCode = code
	s.lastErr = nil
	s.readySince = time.Now().UTC()
	s.mu.Unlock()

	logging.WithContext(ctx, s.logger).Info("reader session ready",
		logging.String(logging.FieldEventType, "session_ready"),
		logging.String(logging.FieldPort, port),
		logging.Int(logging.FieldCode, int(code)),
	)
	// The SDK should not be driven until the hardware settles.
	return s.sleep(ctx, settle)
}

func (s *Session) fault(err *Error, port string) error {
	err.Port = port
	s.mu.Lock()
	s.state = StateFaulted
	s.lastCode = err.Code
	s.lastErr = err
	s.mu.Unlock()
	logging.ErrorWithContext(s.logger, "reader session failed", "session_failed",
		logging.String(logging.FieldPort, port),
		logging.Int(logging.FieldCode, int(err.Code)),
		logging.String("kind", string(err.Kind)),
		logging.String(logging.FieldErrorHint, Remediation(err)),
	)
	return err
}

// Terminate tears the session down from any state. SDK failures are logged,
// never returned.
func (s *Session) Terminate() {
	code := s.binding.Terminate()
	if code.IsError() {
		logging.WarnWithContext(s.logger, "sdk terminate failed", "session_terminate_failed",
			logging.Int(logging.FieldCode, int(code)),
			logging.String(logging.FieldImpact, "next init may report already initialized"),
		)
	}
	s.setState(StateTerminated)
}

// Reinitialize terminates, waits for the reader to settle, and initializes
// again on the last bound port.
func (s *Session) Reinitialize(ctx context.Context) error {
	port := s.Port()
	logging.WithContext(ctx, s.logger).Info("reinitializing reader session",
		logging.String(logging.FieldEventType, "session_reinit"),
		logging.String(logging.FieldPort, port),
	)
	s.Terminate()
	if err := s.sleep(ctx, s.opts.ReinitSettle); err != nil {
		return err
	}
	return s.EnsureReady(ctx, port)
}

// Invalidate marks the handle stale (for example after the reader was
// unplugged). The next EnsureReady initializes again.
func (s *Session) Invalidate(reason string) {
	s.mu.Lock()
	wasReady := s.state == StateReady
	s.state = StateFaulted
	s.lastErr = fmt.Errorf("session invalidated: %s", reason)
	s.mu.Unlock()
	if wasReady {
		logging.WarnWithContext(s.logger, "reader session invalidated", "session_invalidated",
			logging.String("reason", reason),
			logging.String(logging.FieldImpact, "next operation re-initializes the reader"),
		)
	}
}

// Info queries firmware details from a ready reader.
func (s *Session) Info() (sdk.DeviceInfo, error) {
	if s.State() != StateReady {
		return sdk.DeviceInfo{}, NewError(KindBusyOrNotInitialized, "device info", sdk.ErrorNotInitialized, nil)
	}
	info, code := s.binding.DeviceInfo()
	if code != sdk.Success {
		return sdk.DeviceInfo{}, NewError(KindGeneric, "device info", code, nil)
	}
	return info, nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Sleep waits for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
