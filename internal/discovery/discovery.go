package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"bioreader/internal/device"
	"bioreader/internal/logging"
	"bioreader/internal/sdk"
)

// ErrNoDeviceFound is returned when neither labels nor probing identify a reader.
var ErrNoDeviceFound = errors.New("no biometric reader found on any serial port")

// Port is a serial port candidate.
type Port struct {
	// SystemPath is the OS device path (\Device\Serial0, /dev/ttyACM0).
	SystemPath string `json:"system_path"`
	// PortName is the name handed to the SDK (COM3, /dev/ttyACM0).
	PortName string `json:"port_name"`
	// FriendlyName is the resolved label; falls back to SystemPath.
	FriendlyName string `json:"friendly_name"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
}

// Enumerator lists labeled serial ports.
type Enumerator interface {
	Ports(ctx context.Context) ([]Port, error)
}

// StaticEnumerator returns a fixed port list.
type StaticEnumerator []Port

func (s StaticEnumerator) Ports(context.Context) ([]Port, error) {
	return append([]Port(nil), s...), nil
}

// Options configures keyword matching and probe timing.
type Options struct {
	Keywords      []string
	ProbeSettle   time.Duration
	ProbeInit     time.Duration
	ProbeFailure  time.Duration
	ProbeTeardown time.Duration
}

// Finder implements device.PortFinder.
type Finder struct {
	enum   Enumerator
	opts   Options
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// New returns a Finder that enumerates the host's serial ports.
func New(opts Options, logger *slog.Logger) *Finder {
	return NewWithEnumerator(SystemEnumerator(), opts, logger)
}

// NewWithEnumerator returns a Finder backed by enum.
func NewWithEnumerator(enum Enumerator, opts Options, logger *slog.Logger) *Finder {
	return &Finder{
		enum:   enum,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "discovery"),
		sleep:  device.Sleep,
	}
}

// SetSleep replaces the probe delay function, for tests.
func (f *Finder) SetSleep(fn func(context.Context, time.Duration) error) {
	if fn != nil {
		f.sleep = fn
	}
}

// List enumerates labeled ports without touching the SDK.
func (f *Finder) List(ctx context.Context) ([]Port, error) {
	ports, err := f.enum.Ports(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	for i := range ports {
		if ports[i].FriendlyName == "" {
			ports[i].FriendlyName = ports[i].SystemPath
		}
	}
	return ports, nil
}

// Match returns the first port whose label contains a keyword.
func (f *Finder) Match(ports []Port) (Port, string, bool) {
	fold := cases.Fold()
	for _, port := range ports {
		label := fold.String(port.FriendlyName)
		for _, kw := range f.opts.Keywords {
			kw = fold.String(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(label, kw) {
				return port, kw, true
			}
		}
	}
	return Port{}, "", false
}

// Find locates the reader's port, probing with b when no label matches.
func (f *Finder) Find(ctx context.Context, b sdk.Binding) (string, error) {
	ports, err := f.List(ctx)
	if err != nil {
		return "", err
	}
	for _, port := range ports {
		f.logger.Info("serial port candidate",
			logging.String(logging.FieldPort, port.PortName),
			logging.String("system_path", port.SystemPath),
			logging.String("label", port.FriendlyName),
		)
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("%w: no serial ports present", ErrNoDeviceFound)
	}

	if port, kw, ok := f.Match(ports); ok {
		f.logger.Info("reader identified by port label",
			append(logging.Args(logging.DecisionAttrs("port_selection", "label", kw)...),
				logging.String(logging.FieldPort, port.PortName),
				logging.String("label", port.FriendlyName),
			)...,
		)
		return port.PortName, nil
	}

	logging.WarnWithContext(f.logger, "no port label matched, probing ports", "discovery_probe",
		logging.Int("candidates", len(ports)),
		logging.String(logging.FieldErrorHint, "add the reader's label to discovery.keywords to skip probing"),
		logging.String(logging.FieldImpact, "each port is initialized in turn"),
	)
	port, err := f.Probe(ctx, b, ports)
	if err != nil {
		return "", err
	}
	return port.PortName, nil
}

// Probe initializes each port in turn and returns the first that responds.
// The SDK is left terminated on return.
func (f *Finder) Probe(ctx context.Context, b sdk.Binding, ports []Port) (Port, error) {
	b.Terminate()
	if err := f.sleep(ctx, f.opts.ProbeSettle); err != nil {
		return Port{}, err
	}

	for _, port := range ports {
		if code := b.SetSerialCommPort(port.PortName); code != sdk.Success {
			f.logger.Debug("set port failed during probe",
				logging.String(logging.FieldPort, port.PortName),
				logging.Int(logging.FieldCode, int(code)),
			)
			continue
		}
		if err := f.sleep(ctx, f.opts.ProbeInit); err != nil {
			return Port{}, err
		}
		code := b.Init()
		if code.Ready() {
			f.logger.Info("reader responded to probe",
				logging.String(logging.FieldEventType, "discovery_probe_hit"),
				logging.String(logging.FieldPort, port.PortName),
				logging.String("label", port.FriendlyName),
			)
			b.Terminate()
			if err := f.sleep(ctx, f.opts.ProbeTeardown); err != nil {
				return Port{}, err
			}
			return port, nil
		}
		f.logger.Debug("port did not respond",
			logging.String(logging.FieldPort, port.PortName),
			logging.Int(logging.FieldCode, int(code)),
		)
		b.Terminate()
		if err := f.sleep(ctx, f.opts.ProbeFailure); err != nil {
			return Port{}, err
		}
	}
	return Port{}, ErrNoDeviceFound
}
