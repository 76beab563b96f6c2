package logs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bioreader/internal/api"
	"bioreader/internal/notifications"
	"bioreader/internal/services"
)

// ErrFiltersRequireAPI is returned when filters are set but only the log
// file is readable.
var ErrFiltersRequireAPI = errors.New("log filters require a running daemon")

// EventSource fetches buffered daemon events. *api.Client implements it.
type EventSource interface {
	Events(ctx context.Context, since uint64, wait bool) (api.EventsResponse, error)
}

// Filters are matched against each event; empty fields match everything.
type Filters struct {
	Component string
	RequestID string
	UserID    string
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Instructions keeps only operator prompts.
	Instructions bool
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.RequestID) == "" &&
		strings.TrimSpace(f.UserID) == "" &&
		strings.TrimSpace(f.Level) == "" &&
		!f.Instructions
}

// Match reports whether evt passes every filter.
func (f Filters) Match(evt notifications.Event) bool {
	if f.Instructions && evt.Kind != notifications.KindInstruction {
		return false
	}
	if c := strings.TrimSpace(f.Component); c != "" && !strings.EqualFold(evt.Component, c) {
		return false
	}
	if r := strings.TrimSpace(f.RequestID); r != "" && evt.CorrelationID != r {
		return false
	}
	if u := strings.TrimSpace(f.UserID); u != "" && evt.UserID != u {
		return false
	}
	if l := strings.TrimSpace(f.Level); l != "" && evt.Kind == notifications.KindLog && levelRank(evt.Level) < levelRank(l) {
		return false
	}
	return true
}

func levelRank(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return 0
	case "WARN", "WARNING":
		return 2
	case "ERROR":
		return 3
	default:
		return 1
	}
}

// Options controls stream behavior.
type Options struct {
	// Lines is how many recent entries to show first.
	Lines   int
	Follow  bool
	Filters Filters
	// LogDir is tailed when the daemon is unreachable.
	LogDir string
}

// IsAPIUnavailable reports whether err means no daemon answered.
func IsAPIUnavailable(err error) bool {
	return errors.Is(err, services.ErrExternalService)
}

// Stream emits daemon events when the API answers and log file lines
// otherwise. It returns true when anything was emitted.
func Stream(
	ctx context.Context,
	source EventSource,
	opts Options,
	onEvent func(notifications.Event),
	onLine func(string),
) (bool, error) {
	if source != nil {
		printed, err := streamAPI(ctx, source, opts, onEvent)
		if err == nil || !IsAPIUnavailable(err) {
			return printed, err
		}
	}
	if !opts.Filters.empty() {
		return false, ErrFiltersRequireAPI
	}
	if strings.TrimSpace(opts.LogDir) == "" {
		return false, errors.New("daemon unreachable and no log directory configured")
	}
	return streamFile(ctx, opts, onLine)
}

func streamAPI(ctx context.Context, source EventSource, opts Options, onEvent func(notifications.Event)) (bool, error) {
	resp, err := source.Events(ctx, 0, false)
	if err != nil {
		return false, err
	}
	// The first page is the oldest buffered events; keep the newest Lines.
	var backlog []notifications.Event
	for {
		for _, evt := range resp.Events {
			if opts.Filters.Match(evt) {
				backlog = append(backlog, evt)
			}
		}
		if len(resp.Events) == 0 {
			break
		}
		next, err := source.Events(ctx, resp.Next, false)
		if err != nil {
			return false, err
		}
		resp = next
	}
	if opts.Lines >= 0 && len(backlog) > opts.Lines {
		backlog = backlog[len(backlog)-opts.Lines:]
	}
	printed := false
	for _, evt := range backlog {
		emitEvent(onEvent, evt)
		printed = true
	}
	if !opts.Follow {
		return printed, nil
	}

	since := resp.Next
	for {
		resp, err := source.Events(ctx, since, true)
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if opts.Filters.Match(evt) {
				emitEvent(onEvent, evt)
				printed = true
			}
		}
		since = resp.Next
	}
}

func emitEvent(onEvent func(notifications.Event), evt notifications.Event) {
	if onEvent != nil {
		onEvent(evt)
	}
}

func streamFile(ctx context.Context, opts Options, onLine func(string)) (bool, error) {
	path, err := CurrentFile(opts.LogDir)
	if err != nil {
		return false, err
	}
	res, err := Tail(ctx, path, TailOptions{Offset: -1, Limit: max(opts.Lines, 0)})
	if err != nil {
		return false, fmt.Errorf("tail logs: %w", err)
	}
	printed := false
	for {
		for _, line := range res.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		res, err = Tail(ctx, path, TailOptions{Offset: res.Offset, Follow: true, Wait: time.Second})
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, fmt.Errorf("tail logs: %w", err)
		}
	}
}
