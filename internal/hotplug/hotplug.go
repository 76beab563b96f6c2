// Package hotplug watches for serial devices appearing and disappearing so a
// reader that is unplugged does not leave a stale SDK session behind.
package hotplug

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"bioreader/internal/device"
	"bioreader/internal/logging"
)

// Target is the session owner notified about hotplug events.
type Target interface {
	Status() device.Status
	Invalidate(ctx context.Context, reason string) error
}

// Action is a hotplug event type.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Event is a platform-neutral serial device notification.
type Event struct {
	Action  Action
	DevName string
}

type handler struct {
	target Target
	logger *slog.Logger
}

// handle invalidates the session when the port it is bound to goes away.
// Additions are only logged; the next operation re-initializes on demand.
func (h handler) handle(ctx context.Context, evt Event) {
	name := portBase(evt.DevName)
	if name == "" {
		h.logger.Debug("ignoring event without device name", logging.String("action", string(evt.Action)))
		return
	}
	switch evt.Action {
	case ActionAdd:
		h.logger.Info("serial device attached",
			logging.String(logging.FieldEventType, "serial_attached"),
			logging.String(logging.FieldPort, evt.DevName),
		)
	case ActionRemove:
		status := h.target.Status()
		if status.State != device.StateReady.String() || portBase(status.Port) != name {
			h.logger.Debug("ignoring removal of inactive port",
				logging.String(logging.FieldPort, evt.DevName),
				logging.String("active_port", status.Port),
			)
			return
		}
		h.logger.Info("active reader port removed",
			logging.String(logging.FieldEventType, "reader_detached"),
			logging.String(logging.FieldPort, evt.DevName),
		)
		if err := h.target.Invalidate(ctx, "reader unplugged from "+status.Port); err != nil {
			logging.WarnWithContext(h.logger, "failed to invalidate reader session", "hotplug_invalidate_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next operation may fail once before re-initializing"),
			)
		}
	}
}

func portBase(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return filepath.Base(name)
}
