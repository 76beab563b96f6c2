//go:build linux

package hotplug

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"bioreader/internal/logging"
)

// Monitor listens for udev netlink events on the tty subsystem.
type Monitor struct {
	handler handler
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// New creates a monitor that reports to target. A nil target disables it.
func New(target Target, logger *slog.Logger) *Monitor {
	if target == nil {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "hotplug")
	return &Monitor{handler: handler{target: target, logger: logger}, logger: logger}
}

// Start connects to the netlink socket. Connection failures are logged and
// leave the monitor stopped.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "unplugging the reader is detected on the next failed capture"),
		)
		return nil
	}
	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started", logging.String(logging.FieldEventType, "hotplug_monitor_started"))
	return nil
}

// Stop shuts the monitor down.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	_ = m.conn.Close()
	m.conn = nil
	m.running = false
	m.logger.Info("hotplug monitor stopped", logging.String(logging.FieldEventType, "hotplug_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handler.handle(ctx, toEvent(uevent))
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "hotplug events may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=tty with ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env:    map[string]string{"SUBSYSTEM": "tty"},
	})
	return rules
}

func toEvent(uevent netlink.UEvent) Event {
	name := uevent.Env["DEVNAME"]
	if name == "" {
		name = portBase(uevent.Env["DEVPATH"])
	}
	return Event{Action: Action(string(uevent.Action)), DevName: name}
}
