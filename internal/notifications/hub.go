package notifications

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bioreader/internal/logging"
	"bioreader/internal/services"
)

// Event kinds.
const (
	KindInstruction = "instruction"
	KindLog         = "log"
)

// Event is a buffered notification.
type Event struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Kind          string            `json:"kind"`
	Level         string            `json:"level,omitempty"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// Hub stores recent events and wakes waiters when new ones arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Instruction publishes an operator instruction tagged with the request
// fields carried by ctx.
func (h *Hub) Instruction(ctx context.Context, message string) {
	evt := Event{Kind: KindInstruction, Message: message}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		evt.CorrelationID = rid
	}
	if user, ok := services.UserIDFromContext(ctx); ok {
		evt.UserID = user
	}
	h.Publish(evt)
}

// Publish appends evt, evicting the oldest event when full.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns up to limit events with sequence greater than since, and the
// cursor for the next call. When wait is true it blocks until an event is
// available or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	stopWake := make(chan struct{})
	if wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-stopWake:
			}
		}()
	}
	defer close(stopWake)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := max(len(h.buffer)-limit, 0)
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	start := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, h.nextSeq
	}
	end := min(start+limit, len(h.buffer))
	out := make([]Event, end-start)
	copy(out, h.buffer[start:end])
	return out, out[len(out)-1].Sequence
}

type logHandler struct {
	hub   *Hub
	level slog.Leveler
	attrs []slog.Attr
}

// NewLogHandler returns a slog handler that publishes records at or above
// level into hub. Combine it with logging.TeeLogger.
func NewLogHandler(hub *Hub, level slog.Leveler) slog.Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &logHandler{hub: hub, level: level}
}

func (h *logHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *logHandler) Handle(_ context.Context, record slog.Record) error {
	evt := Event{
		Kind:      KindLog,
		Timestamp: record.Time.UTC(),
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	apply := func(attr slog.Attr) bool {
		key := strings.TrimSpace(attr.Key)
		if key == "" {
			return true
		}
		value := attr.Value.Resolve().String()
		switch key {
		case logging.FieldComponent:
			evt.Component = value
		case logging.FieldCorrelationID:
			evt.CorrelationID = value
		case logging.FieldUserID:
			evt.UserID = value
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string)
			}
			evt.Fields[key] = value
		}
		return true
	}
	for _, attr := range h.attrs {
		apply(attr)
	}
	record.Attrs(apply)
	h.hub.Publish(evt)
	return nil
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &logHandler{hub: h.hub, level: h.level, attrs: next}
}

func (h *logHandler) WithGroup(string) slog.Handler { return h }
