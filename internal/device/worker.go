package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"bioreader/internal/logging"
)

// Job is a unit of hardware work run on the worker goroutine.
type Job func(ctx context.Context, s *Session) error

type request struct {
	ctx    context.Context
	job    Job
	result chan error
}

// Worker serializes every hardware call through one goroutine that owns the
// Session.
type Worker struct {
	session  *Session
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock

	jobs chan request
	quit chan struct{}
	done chan struct{}

	mu      sync.Mutex
	running bool
	busy    atomic.Bool
	started time.Time
}

// NewWorker wraps session. A non-empty lockPath makes Start take a host-wide
// file lock on the reader.
func NewWorker(session *Session, lockPath string, logger *slog.Logger) *Worker {
	w := &Worker{
		session:  session,
		logger:   logging.NewComponentLogger(logger, "device-worker"),
		lockPath: lockPath,
		jobs:     make(chan request),
	}
	if lockPath != "" {
		w.lock = flock.New(lockPath)
	}
	return w
}

// Start acquires the reader lock and launches the worker goroutine.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if w.lock != nil {
		ok, err := w.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire reader lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w (lock %s)", ErrDeviceLocked, w.lockPath)
		}
	}
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true
	w.started = time.Now().UTC()
	go w.loop(w.quit, w.done)
	w.logger.Debug("device worker started", logging.String("lock", w.lockPath))
	return nil
}

// Stop terminates the session on the worker goroutine, waits for any
// in-flight job to finish, and releases the lock.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	quit, done := w.quit, w.done
	w.mu.Unlock()

	close(quit)
	<-done
	if w.lock != nil {
		if err := w.lock.Unlock(); err != nil {
			logging.WarnWithContext(w.logger, "failed to release reader lock", "lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale lock file remains until process exit"),
			)
		}
	}
	w.logger.Debug("device worker stopped")
}

// Running reports whether the worker loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Busy reports whether a hardware job is in progress.
func (w *Worker) Busy() bool { return w.busy.Load() }

// Session returns the owned session for status reads only.
func (w *Worker) Session() *Session { return w.session }

// Do runs job on the worker and waits for it. If ctx ends first Do returns
// ctx.Err() while the job keeps running to completion: an issued SDK call
// cannot be aborted. The job receives a context that carries ctx values but
// is never canceled.
func (w *Worker) Do(ctx context.Context, job Job) error {
	w.mu.Lock()
	running, done := w.running, w.done
	w.mu.Unlock()
	if !running {
		return ErrWorkerStopped
	}

	req := request{ctx: context.WithoutCancel(ctx), job: job, result: make(chan error, 1)}
	select {
	case w.jobs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrWorkerStopped
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case req := <-w.jobs:
			req.result <- w.run(req)
		case <-quit:
			w.session.Terminate()
			return
		}
	}
}

func (w *Worker) run(req request) (err error) {
	w.busy.Store(true)
	defer w.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("device job panicked: %v", r)
			w.session.Invalidate("job panicked")
			logging.ErrorWithContext(w.logger, "device job panicked", "device_job_panic", logging.Any("panic", r))
		}
	}()
	return req.job(req.ctx, w.session)
}
