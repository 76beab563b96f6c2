package notifications

import (
	"context"
	"log/slog"
	"sync"

	"bioreader/internal/logging"
)

// Sink receives operator instructions.
type Sink interface {
	Instruction(ctx context.Context, message string)
}

// Noop discards instructions.
type Noop struct{}

func (Noop) Instruction(context.Context, string) {}

// LogSink writes instructions to a logger at info level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs through logger.
func NewLogSink(logger *slog.Logger) LogSink {
	return LogSink{logger: logging.NewComponentLogger(logger, "operator")}
}

func (s LogSink) Instruction(ctx context.Context, message string) {
	logging.WithContext(ctx, s.logger).Info(message, logging.String(logging.FieldEventType, "operator_instruction"))
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, message string)

func (f Func) Instruction(ctx context.Context, message string) {
	if f != nil {
		f(ctx, message)
	}
}

type multi []Sink

// Multi fans instructions out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return Noop{}
	case 1:
		return out[0]
	}
	return out
}

func (m multi) Instruction(ctx context.Context, message string) {
	for _, s := range m {
		s.Instruction(ctx, message)
	}
}

// Recorder keeps every instruction it receives.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Instruction(_ context.Context, message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

// Messages returns the recorded instructions in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
