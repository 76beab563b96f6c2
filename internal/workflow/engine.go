package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bioreader/internal/capture"
	"bioreader/internal/device"
	"bioreader/internal/discovery"
	"bioreader/internal/logging"
	"bioreader/internal/match"
	"bioreader/internal/notifications"
	"bioreader/internal/services"
	"bioreader/internal/store"
)

// ErrDriverProblem marks a connection test where init succeeded but capture
// kept reporting the reader as not initialized.
var ErrDriverProblem = errors.New("reader initialized but capture failed: driver not installed or not working")

// Deps are the collaborators an Engine drives.
type Deps struct {
	Worker *device.Worker
	Store  store.Store
	Sink   notifications.Sink
	// Finder lists and probes ports. Optional.
	Finder *discovery.Finder
	// Alerts receives device faults and enrollments. Optional.
	Alerts notifications.Alerter
	Logger *slog.Logger
}

// Engine runs workflows on the device worker.
type Engine struct {
	worker *device.Worker
	store  store.Store
	sink   notifications.Sink
	finder *discovery.Finder
	alerts notifications.Alerter
	opts   Options
	logger *slog.Logger

	newID func() string
	sleep func(context.Context, time.Duration) error
}

// New constructs an Engine.
func New(deps Deps, opts Options) *Engine {
	sink := deps.Sink
	if sink == nil {
		sink = notifications.Noop{}
	}
	alerts := deps.Alerts
	if alerts == nil {
		alerts = notifications.NoopAlerter{}
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Engine{
		worker: deps.Worker,
		store:  deps.Store,
		sink:   sink,
		finder: deps.Finder,
		alerts: alerts,
		opts:   opts,
		logger: logging.NewComponentLogger(deps.Logger, "workflow"),
		newID:  uuid.NewString,
		sleep:  device.Sleep,
	}
}

// SetSleep replaces every delay the engine and its orchestrators use, for
// tests.
func (e *Engine) SetSleep(fn func(context.Context, time.Duration) error) {
	if fn != nil {
		e.sleep = fn
	}
}

// ValidateOrEnroll fetches the user's templates and runs the workflow.
func (e *Engine) ValidateOrEnroll(ctx context.Context, req Request) (Outcome, error) {
	if err := validateRequest(req); err != nil {
		return Outcome{}, err
	}
	if e.store == nil {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "workflow", "fetch templates", "no template store configured", nil)
	}
	ctx = e.begin(ctx, req.UserID, "validate")
	stored, err := e.store.List(ctx, req.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch stored templates: %w", err)
	}
	return e.run(ctx, req, stored)
}

// Run executes the single enroll-or-verify decision against a stored set
// the caller already fetched.
func (e *Engine) Run(ctx context.Context, req Request, stored []store.Template) (Outcome, error) {
	if err := validateRequest(req); err != nil {
		return Outcome{}, err
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = e.begin(ctx, req.UserID, "validate")
	}
	return e.run(ctx, req, stored)
}

func (e *Engine) run(ctx context.Context, req Request, stored []store.Template) (Outcome, error) {
	out, err := e.decide(ctx, req, stored)
	e.alert(ctx, req, out, err)
	return out, err
}

// alert pushes device faults and, when enabled, enrollments. Delivery
// failures are logged only.
func (e *Engine) alert(ctx context.Context, req Request, out Outcome, err error) {
	var sendErr error
	switch {
	case err != nil && device.KindOf(err) != "":
		op, _ := services.OperationFromContext(ctx)
		sendErr = e.alerts.NotifyDeviceFault(ctx, err, op)
	case err == nil && out.Enrolled && out.Quality != nil:
		sendErr = e.alerts.NotifyEnrolled(ctx, req.UserID, *out.Quality)
	}
	if sendErr != nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "alert delivery failed", "alert_failed",
			logging.Error(sendErr),
			logging.String(logging.FieldImpact, "operators were not notified"),
		)
	}
}

func (e *Engine) decide(ctx context.Context, req Request, stored []store.Template) (Outcome, error) {
	log := logging.WithContext(ctx, e.logger)
	if len(stored) == 0 {
		log.Info("no stored templates, enrolling",
			logging.Args(logging.DecisionAttrs("workflow_path", "enroll", "stored template set is empty")...)...,
		)
		return e.enroll(services.WithOperation(ctx, "enroll"), req)
	}
	log.Info("stored templates found, verifying",
		append(logging.Args(logging.DecisionAttrs("workflow_path", "verify", "stored templates present")...),
			logging.Int("templates", len(stored)),
		)...,
	)
	return e.verify(services.WithOperation(ctx, "verify"), req, stored)
}

func (e *Engine) enroll(ctx context.Context, req Request) (Outcome, error) {
	var best capture.Sample
	err := e.worker.Do(ctx, func(ctx context.Context, s *device.Session) error {
		if err := s.EnsureReady(ctx, req.Port); err != nil {
			return err
		}
		var err error
		best, err = e.orchestrator(s).CaptureBestOf(ctx, e.opts.Attempts)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	log := logging.WithContext(ctx, e.logger)
	if best.Quality < e.opts.MinQuality {
		log.Info("enrollment rejected for insufficient quality",
			append(logging.Args(logging.DecisionAttrs("quality_gate", "rejected", "best sample below minimum")...),
				logging.Int("quality", best.Quality),
				logging.Int("min_quality", e.opts.MinQuality),
			)...,
		)
		return Outcome{
			Success: false,
			Reason:  fmt.Sprintf("insufficient quality (best: %d%%), try again placing the finger more precisely", best.Quality),
			Quality: intPtr(best.Quality),
		}, nil
	}

	finger := req.Finger
	if finger == "" {
		finger = e.opts.DefaultFinger
	}
	if err := e.store.Save(ctx, store.Enrollment{
		UserID:   req.UserID,
		Template: best.Template,
		Quality:  best.Quality,
		Finger:   finger,
	}); err != nil {
		return Outcome{}, fmt.Errorf("persist enrollment: %w", err)
	}
	log.Info("user enrolled",
		logging.String(logging.FieldEventType, "user_enrolled"),
		logging.Int("quality", best.Quality),
		logging.String("finger", finger),
	)
	return Outcome{
		Success:  true,
		Reason:   fmt.Sprintf("fingerprint enrolled (quality: %d%%)", best.Quality),
		Quality:  intPtr(best.Quality),
		Enrolled: true,
	}, nil
}

func (e *Engine) verify(ctx context.Context, req Request, stored []store.Template) (Outcome, error) {
	minPercent := e.opts.DefaultMinPercent
	if req.MinPercent != nil {
		minPercent = *req.MinPercent
	}
	candidates := make([]match.Candidate, 0, len(stored))
	for _, t := range stored {
		candidates = append(candidates, match.Candidate{ID: t.ID, Template: t.Template})
	}

	var (
		live   capture.Sample
		result match.Result
	)
	err := e.worker.Do(ctx, func(ctx context.Context, s *device.Session) error {
		if err := s.EnsureReady(ctx, req.Port); err != nil {
			return err
		}
		var err error
		if live, err = e.orchestrator(s).CaptureOne(ctx); err != nil {
			return err
		}
		result, err = match.MatchAgainst(ctx, s.Binding(), candidates, live.Template, e.logger)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Score:   intPtr(result.RawScore),
		Percent: intPtr(result.Percent),
		Quality: intPtr(live.Quality),
	}
	decision := "accepted"
	if result.Percent < minPercent {
		decision = "rejected"
		out.Reason = fmt.Sprintf("score %d%% below minimum %d%%", result.Percent, minPercent)
	} else {
		out.Success = true
		out.Reason = "fingerprint verified"
	}
	logging.WithContext(ctx, e.logger).Info("verification complete",
		append(logging.Args(logging.DecisionAttrs("match_threshold", decision, out.Reason)...),
			logging.Int("score", result.RawScore),
			logging.Int("percent", result.Percent),
			logging.Int("min_percent", minPercent),
			logging.String("template_id", result.ID),
		)...,
	)
	return out, nil
}

// TestConnection initializes the reader, waits for it to settle, and reads
// one sample without storing it.
func (e *Engine) TestConnection(ctx context.Context, port string) (ConnectionReport, error) {
	ctx = e.begin(ctx, "", "test_connection")
	var report ConnectionReport
	err := e.worker.Do(ctx, func(ctx context.Context, s *device.Session) error {
		if err := s.EnsureReady(ctx, port); err != nil {
			return err
		}
		report.Port = s.Port()
		if err := e.sleep(ctx, e.opts.TestSettle); err != nil {
			return err
		}
		e.sink.Instruction(ctx, "place finger to test the reader")
		sample, err := e.orchestrator(s).CaptureOne(ctx)
		if err != nil {
			return err
		}
		report.Quality = sample.Quality
		return nil
	})
	if err != nil {
		if device.KindOf(err) == device.KindBusyOrNotInitialized {
			return ConnectionReport{Port: report.Port}, fmt.Errorf("%w: %w", ErrDriverProblem, err)
		}
		return ConnectionReport{Port: report.Port}, err
	}
	portLabel := report.Port
	if portLabel == "" {
		portLabel = "auto-detected port"
	}
	report.Success = true
	report.Message = fmt.Sprintf("reader working on %s, capture quality %d%%", portLabel, report.Quality)
	return report, nil
}

// Initialize brings the reader session up.
func (e *Engine) Initialize(ctx context.Context, port string) (device.Status, error) {
	ctx = e.begin(ctx, "", "initialize")
	err := e.worker.Do(ctx, func(ctx context.Context, s *device.Session) error {
		return s.EnsureReady(ctx, port)
	})
	return e.worker.Session().Status(), err
}

// Reinitialize terminates and re-initializes the reader session, picking up
// a reader that moved to another port.
func (e *Engine) Reinitialize(ctx context.Context) (device.Status, error) {
	ctx = e.begin(ctx, "", "reinitialize")
	err := e.worker.Do(ctx, func(ctx context.Context, s *device.Session) error {
		return s.Reinitialize(ctx)
	})
	return e.worker.Session().Status(), err
}

// Invalidate marks the reader session stale, for example after the reader
// was unplugged. It makes no SDK call, so it does not queue behind a
// running job such as a capture waiting for a finger.
func (e *Engine) Invalidate(_ context.Context, reason string) error {
	if !e.worker.Running() {
		return device.ErrWorkerStopped
	}
	e.worker.Session().Invalidate(reason)
	return nil
}

// Status reports the reader session without touching hardware.
func (e *Engine) Status() device.Status {
	return e.worker.Session().Status()
}

// Busy reports whether a hardware job is in progress.
func (e *Engine) Busy() bool { return e.worker.Busy() }

// PortsReport lists serial port candidates and, when probed, the port that
// responded.
type PortsReport struct {
	Ports   []discovery.Port `json:"ports"`
	Matched string           `json:"matched,omitempty"`
	Probed  string           `json:"probed,omitempty"`
}

// Ports lists serial ports. With probe set, unmatched ports are initialized
// in turn on the worker, which tears down any open session.
func (e *Engine) Ports(ctx context.Context, probe bool) (PortsReport, error) {
	if e.finder == nil {
		return PortsReport{}, services.Wrap(services.ErrConfiguration, "workflow", "ports", "port discovery is disabled", nil)
	}
	ports, err := e.finder.List(ctx)
	if err != nil {
		return PortsReport{}, err
	}
	report := PortsReport{Ports: ports}
	if port, _, ok := e.finder.Match(ports); ok {
		report.Matched = port.PortName
	}
	if !probe || len(ports) == 0 {
		return report, nil
	}

	ctx = e.begin(ctx, "", "probe")
	err = e.worker.Do(ctx, func(ctx context.Context, s *device.Session) error {
		found, err := e.finder.Probe(ctx, s.Binding(), ports)
		s.Invalidate("port probe")
		if err != nil {
			return err
		}
		report.Probed = found.PortName
		return nil
	})
	if errors.Is(err, discovery.ErrNoDeviceFound) {
		return report, nil
	}
	return report, err
}

func (e *Engine) orchestrator(s *device.Session) *capture.Orchestrator {
	orch := capture.New(s, e.sink, e.opts.Capture, e.logger)
	orch.SetSleep(e.sleep)
	return orch
}

func (e *Engine) begin(ctx context.Context, userID, operation string) context.Context {
	ctx = services.WithRequestID(ctx, e.newID())
	ctx = services.WithUserID(ctx, userID)
	return services.WithOperation(ctx, operation)
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.UserID) == "" {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "user_id is required", nil)
	}
	if p := req.MinPercent; p != nil && (*p < 0 || *p > 100) {
		return services.Wrap(services.ErrValidation, "workflow", "validate",
			fmt.Sprintf("min_percent must be between 0 and 100, got %d", *p), nil)
	}
	return nil
}
