// Package app assembles the reader runtime from configuration: SDK binding,
// device session and worker, port discovery, template store and workflow
// engine. The daemon and the CLI's local mode build the same graph.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bioreader/internal/config"
	"bioreader/internal/device"
	"bioreader/internal/discovery"
	"bioreader/internal/driver"
	"bioreader/internal/logging"
	"bioreader/internal/notifications"
	"bioreader/internal/preflight"
	"bioreader/internal/sdk"
	"bioreader/internal/store"
	"bioreader/internal/store/reststore"
	"bioreader/internal/store/sqlitestore"
	"bioreader/internal/workflow"
)

// Options customizes Build.
type Options struct {
	// Sink receives operator instructions in addition to the event hub.
	Sink notifications.Sink
	// Binding overrides the configured SDK binding.
	Binding sdk.Binding
	// Driver overrides the host driver check.
	Driver driver.Checker
	// Store overrides the configured template store.
	Store store.Store
	// Alerts overrides the configured ntfy alerter.
	Alerts notifications.Alerter
	// HubCapacity sizes the event buffer. Zero uses the hub default.
	HubCapacity int
}

// Runtime is an assembled, not yet started, reader stack.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *notifications.Hub
	Alerts  notifications.Alerter
	Binding sdk.Binding
	Driver  driver.Checker
	Finder  *discovery.Finder
	Session *device.Session
	Worker  *device.Worker
	Store   store.Store
	Engine  *workflow.Engine

	closeStore func() error
}

// Build wires the runtime. The template store is opened lazily for the rest
// backend and eagerly for sqlite; a missing store configuration is not an
// error here so device-only commands keep working.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	rt := &Runtime{Config: cfg, Hub: notifications.NewHub(opts.HubCapacity)}
	rt.Logger = logging.TeeLogger(logger, notifications.NewLogHandler(rt.Hub, slog.LevelInfo))

	rt.Binding = opts.Binding
	if rt.Binding == nil {
		rt.Binding = openBinding(cfg, rt.Logger)
	}
	rt.Driver = opts.Driver
	if rt.Driver == nil {
		if cfg.Device.Driver == "simulated" {
			rt.Driver = driver.Static(true)
		} else {
			rt.Driver = driver.NewChecker(cfg.Device.DriverModules)
		}
	}

	rt.Finder = discovery.New(discovery.Options{
		Keywords:      cfg.Discovery.Keywords,
		ProbeSettle:   config.Millis(cfg.Discovery.ProbeSettleMillis),
		ProbeInit:     config.Millis(cfg.Discovery.ProbeInitMillis),
		ProbeFailure:  config.Millis(cfg.Discovery.ProbeFailureMillis),
		ProbeTeardown: config.Millis(cfg.Discovery.ProbeTeardownMillis),
	}, rt.Logger)

	var finder device.PortFinder
	if cfg.Discovery.Enabled {
		finder = rt.Finder
	}
	rt.Session = device.NewSession(rt.Binding, rt.Driver, finder, device.Options{
		Port:              cfg.Device.Port,
		InitSettle:        config.Millis(cfg.Device.InitSettleMillis),
		AlreadyInitSettle: config.Millis(cfg.Device.AlreadyInitSettleMillis),
		ReinitSettle:      config.Millis(cfg.Device.ReinitSettleMillis),
		Discover:          cfg.Discovery.Enabled,
	}, rt.Logger)
	rt.Worker = device.NewWorker(rt.Session, cfg.LockPath(), rt.Logger)

	rt.Store = opts.Store
	if rt.Store == nil {
		st, closeFn, err := OpenStore(ctx, cfg, rt.Logger)
		if err != nil {
			return nil, err
		}
		rt.Store = st
		rt.closeStore = closeFn
	}

	rt.Alerts = opts.Alerts
	if rt.Alerts == nil {
		rt.Alerts = notifications.NewAlerter(cfg)
	}

	rt.Engine = workflow.New(workflow.Deps{
		Worker: rt.Worker,
		Store:  rt.Store,
		Sink:   notifications.Multi(rt.Hub, opts.Sink),
		Finder: rt.Finder,
		Alerts: rt.Alerts,
		Logger: rt.Logger,
	}, workflow.OptionsFromConfig(cfg))
	return rt, nil
}

// Start acquires the host reader lock and starts the device worker.
func (r *Runtime) Start() error {
	return r.Worker.Start()
}

// Close stops the worker, which terminates the SDK session, and closes the
// store.
func (r *Runtime) Close() error {
	r.Worker.Stop()
	if r.closeStore != nil {
		return r.closeStore()
	}
	return nil
}

// Preflight reports host readiness.
func (r *Runtime) Preflight(ctx context.Context) preflight.Status {
	return preflight.Check(ctx, r.Config, r.Driver)
}

// OpenStore opens the configured template store. It returns a nil store
// when the rest backend lacks credentials; the workflow then reports a
// configuration error on use.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		st, err := sqlitestore.Open(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open template store: %w", err)
		}
		return st, st.Close, nil
	default:
		if err := cfg.RequireStore(); err != nil {
			logging.WarnWithContext(logger, "template store not configured", "store_unconfigured",
				logging.Error(err),
				logging.String(logging.FieldImpact, "validate requests fail until the store is configured"),
			)
			return nil, nil, nil
		}
		return reststore.New(reststore.Config{
			URL:     cfg.Store.URL,
			APIKey:  cfg.Store.APIKey,
			Table:   cfg.Store.Table,
			Timeout: cfg.StoreTimeout(),
		}, nil, logger), nil, nil
	}
}

func openBinding(cfg *config.Config, logger *slog.Logger) sdk.Binding {
	library := cfg.Device.Library
	if cfg.Device.Driver != "simulated" {
		if path, err := driver.LocateLibrary(firstNonEmpty(library, sdk.LibraryName)); err == nil {
			library = path
		}
	}
	b, err := sdk.Open(cfg.Device.Driver, library)
	if err != nil {
		logging.WarnWithContext(logger, "sdk library unavailable", "sdk_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'bioreader sdk sync <path>' or set device.library"),
			logging.String(logging.FieldImpact, "reader operations report the driver as missing"),
		)
		return sdk.Unavailable{Reason: err.Error()}
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
