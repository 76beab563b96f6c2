package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"bioreader/internal/device"
	"bioreader/internal/logging"
	"bioreader/internal/notifications"
	"bioreader/internal/sdk"
)

// Sample is one successful capture.
type Sample struct {
	Template []byte
	Quality  int
}

// Options configures prompts and SDK timeouts.
type Options struct {
	// PlaceDelay runs after each place-finger prompt.
	PlaceDelay time.Duration
	// RemoveDelay runs after each remove-finger prompt.
	RemoveDelay time.Duration
	// DetectTimeout bounds how long the SDK waits for a finger. Zero keeps
	// the SDK default of waiting indefinitely.
	DetectTimeout time.Duration
}

// Orchestrator captures on one session. It is not safe for concurrent use
// and should live for a single workflow invocation, since its reinit budget
// is never replenished.
type Orchestrator struct {
	session *device.Session
	sink    notifications.Sink
	opts    Options
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error

	reinitUsed bool
	timeoutSet bool
}

// New returns an orchestrator for session. sink may be nil.
func New(session *device.Session, sink notifications.Sink, opts Options, logger *slog.Logger) *Orchestrator {
	if sink == nil {
		sink = notifications.Noop{}
	}
	return &Orchestrator{
		session: session,
		sink:    sink,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "capture"),
		sleep:   device.Sleep,
	}
}

// SetSleep replaces the prompt delay function, for tests.
func (o *Orchestrator) SetSleep(fn func(context.Context, time.Duration) error) {
	if fn != nil {
		o.sleep = fn
	}
}

// ReinitUsed reports whether the reinit budget has been spent.
func (o *Orchestrator) ReinitUsed() bool { return o.reinitUsed }

// CaptureOne blocks until a finger is read.
func (o *Orchestrator) CaptureOne(ctx context.Context) (Sample, error) {
	b := o.session.Binding()
	o.applyDetectTimeout(ctx, b)
	log := logging.WithContext(ctx, o.logger)

	capture, code := b.CaptureImageAndTemplate()
	if code == sdk.ErrorNotInitialized {
		if o.reinitUsed {
			return Sample{}, device.NewError(device.KindBusyOrNotInitialized, "capture", code, nil)
		}
		o.reinitUsed = true
		logging.WarnWithContext(log, "capture reported reader not initialized, reinitializing", "capture_reinit",
			logging.Int(logging.FieldCode, int(code)),
			logging.String(logging.FieldErrorHint, "check the USB connection if this repeats"),
			logging.String(logging.FieldImpact, "capture retried once"),
		)
		if err := o.session.Reinitialize(ctx); err != nil {
			return Sample{}, err
		}
		capture, code = b.CaptureImageAndTemplate()
		if code == sdk.ErrorNotInitialized {
			return Sample{}, device.NewError(device.KindBusyOrNotInitialized, "capture", code, nil)
		}
	}
	if code != sdk.Success {
		return Sample{}, device.NewError(device.KindGeneric, "capture", code, nil)
	}
	if len(capture.Template) == 0 {
		return Sample{}, device.NewError(device.KindCaptureEmptyResult, "capture", code, nil)
	}
	log.Debug("capture complete", logging.Int("quality", capture.Quality))
	return Sample{Template: capture.Template, Quality: capture.Quality}, nil
}

// CaptureBestOf captures n samples in sequence and returns the one with the
// highest quality; ties keep the earliest. Any failure aborts and discards
// the samples read so far.
func (o *Orchestrator) CaptureBestOf(ctx context.Context, n int) (Sample, error) {
	if n < 1 {
		return Sample{}, fmt.Errorf("capture best-of: attempts must be at least 1, got %d", n)
	}
	log := logging.WithContext(ctx, o.logger)

	var best Sample
	for i := 1; i <= n; i++ {
		o.sink.Instruction(ctx, fmt.Sprintf("place finger (%d/%d)", i, n))
		if err := o.sleep(ctx, o.opts.PlaceDelay); err != nil {
			return Sample{}, err
		}

		sample, err := o.CaptureOne(ctx)
		if err != nil {
			o.sink.Instruction(ctx, fmt.Sprintf("capture %d failed: %v", i, err))
			return Sample{}, err
		}
		log.Info("capture attempt complete",
			logging.Int("attempt", i),
			logging.Int("attempts", n),
			logging.Int("quality", sample.Quality),
		)
		if i == 1 || sample.Quality > best.Quality {
			best = sample
		}
		o.sink.Instruction(ctx, fmt.Sprintf("reading %d ok (quality %d)", i, sample.Quality))

		if i < n {
			o.sink.Instruction(ctx, "remove finger")
			if err := o.sleep(ctx, o.opts.RemoveDelay); err != nil {
				return Sample{}, err
			}
		}
	}
	return best, nil
}

func (o *Orchestrator) applyDetectTimeout(ctx context.Context, b sdk.Binding) {
	if o.timeoutSet || o.opts.DetectTimeout <= 0 {
		return
	}
	o.timeoutSet = true
	ms := strconv.FormatInt(o.opts.DetectTimeout.Milliseconds(), 10)
	if code := b.SetParameter(sdk.ParamDetectTimeout, ms); code != sdk.Success {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "sdk rejected detect timeout", "capture_timeout_unsupported",
			logging.Int(logging.FieldCode, int(code)),
			logging.String(logging.FieldImpact, "capture waits for a finger indefinitely"),
		)
	}
}
