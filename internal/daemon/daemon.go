package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"bioreader/internal/api"
	"bioreader/internal/app"
	"bioreader/internal/config"
	"bioreader/internal/hotplug"
	"bioreader/internal/logging"
)

// Daemon owns the reader runtime, hotplug monitor and API server.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	runtime *app.Runtime
	api     *api.Server
	hotplug *hotplug.Monitor
	version string

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon around an assembled runtime.
func New(cfg *config.Config, rt *app.Runtime, version string) (*Daemon, error) {
	if cfg == nil || rt == nil {
		return nil, errors.New("daemon requires config and runtime")
	}
	logger := logging.NewComponentLogger(rt.Logger, "daemon")
	d := &Daemon{
		cfg:     cfg,
		logger:  logger,
		runtime: rt,
		hotplug: hotplug.New(rt.Engine, rt.Logger),
		version: version,
	}
	d.api = api.NewServer(api.Options{
		Backend:   rt.Engine,
		Events:    rt.Hub,
		Preflight: rt.Preflight,
		Token:     cfg.API.Token,
		Version:   version,
		Logger:    rt.Logger,
	})
	return d, nil
}

// Start acquires the reader lock, then starts the hotplug monitor and API
// server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.runtime.Start(); err != nil {
		return fmt.Errorf("start device worker: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.Start(runCtx, d.cfg.API.Bind); err != nil {
		cancel()
		d.runtime.Worker.Stop()
		return err
	}
	if err := d.hotplug.Start(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "hotplug monitor failed to start", "hotplug_start_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "an unplugged reader is detected on the next capture"),
		)
	}
	d.cancel = cancel
	d.running.Store(true)

	st := d.runtime.Preflight(ctx)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("api", d.api.Addr()),
		logging.String("lock", d.cfg.LockPath()),
		logging.String("binding", d.runtime.Binding.Name()),
		logging.Bool("sdk_ready", st.Ready),
	}
	d.logger.Info("bioreader daemon started", logging.Args(attrs...)...)
	if !st.Ready {
		logging.WarnWithContext(d.logger, "preflight checks failed", "preflight_failed",
			logging.String(logging.FieldErrorHint, st.ErrorMessage),
			logging.String(logging.FieldImpact, "reader requests may fail until resolved"),
		)
	}
	return nil
}

// Stop shuts down the API and monitor, terminates the SDK session and
// releases the reader lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.Stop()
	d.hotplug.Stop()
	d.runtime.Worker.Stop()
	d.running.Store(false)
	d.logger.Info("bioreader daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases runtime resources.
func (d *Daemon) Close() error {
	d.Stop()
	return d.runtime.Close()
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool { return d.running.Load() }

// Addr returns the API listen address.
func (d *Daemon) Addr() string { return d.api.Addr() }

// Status returns the same payload as GET /api/status.
func (d *Daemon) Status(ctx context.Context) api.StatusResponse {
	st := d.runtime.Preflight(ctx)
	return api.StatusResponse{
		Version:   d.version,
		PID:       os.Getpid(),
		Session:   d.runtime.Engine.Status(),
		Busy:      d.runtime.Engine.Busy(),
		Preflight: &st,
	}
}
