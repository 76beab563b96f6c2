//go:build !linux

package hotplug

import (
	"context"
	"log/slog"

	"bioreader/internal/logging"
)

// Monitor is inactive on this platform. A removed reader surfaces on the
// next capture as a not-initialized code and is re-initialized then.
type Monitor struct {
	logger *slog.Logger
}

// New returns an inactive monitor.
func New(target Target, logger *slog.Logger) *Monitor {
	if target == nil {
		return nil
	}
	return &Monitor{logger: logging.NewComponentLogger(logger, "hotplug")}
}

func (m *Monitor) Start(context.Context) error {
	if m != nil {
		m.logger.Debug("hotplug monitoring unavailable on this platform")
	}
	return nil
}

func (m *Monitor) Stop() {}

func (m *Monitor) Running() bool { return false }
