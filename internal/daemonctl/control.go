// Package daemonctl launches a detached reader daemon and stops a running
// one through its pid file.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Prober checks whether the daemon API answers.
type Prober interface {
	Health(ctx context.Context) error
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates the daemon API is unavailable and no pid
// file identifies a process.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

// Launch starts a detached "serve" process from executablePath.
func Launch(executablePath string, opts LaunchOptions) (int, error) {
	if strings.TrimSpace(executablePath) == "" {
		return 0, fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	return pid, proc.Process.Release()
}

// WaitForDaemon polls p until it answers or timeout elapses.
func WaitForDaemon(ctx context.Context, p Prober, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		lastErr = p.Health(ctx)
		if lastErr == nil {
			return nil
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers.
func EnsureStarted(ctx context.Context, p Prober, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if err := p.Health(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	pid, err := Launch(executablePath, opts)
	if err != nil {
		return StartResult{}, err
	}
	if err := WaitForDaemon(ctx, p, waitTimeout); err != nil {
		return StartResult{PID: pid}, err
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// WaitForShutdown polls p until it stops answering or timeout elapses.
func WaitForShutdown(ctx context.Context, p Prober, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := p.Health(ctx); err != nil {
			return nil
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("daemon still answering after %s", timeout)
}

// ReadPID parses a pid file written by the daemon.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid daemon pid file %q", pidPath)
	}
	return pid, nil
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Stop asks the daemon process to terminate and kills it when it is still
// answering after gracePeriod. fallbackPID is used when the pid file is
// missing.
func Stop(ctx context.Context, p Prober, pidPath string, fallbackPID int, gracePeriod time.Duration) (StopResult, error) {
	pid, err := ReadPID(pidPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && fallbackPID > 0:
		pid = fallbackPID
	case errors.Is(err, os.ErrNotExist):
		return StopResult{}, ErrDaemonNotRunning
	default:
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	result := StopResult{PID: pid}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Windows cannot deliver SIGTERM.
		if killErr := proc.Kill(); killErr != nil {
			return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
		}
		result.ForcedKill = true
	}
	if err := WaitForShutdown(ctx, p, gracePeriod); err == nil {
		return result, nil
	}

	if err := proc.Kill(); err != nil {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	result.ForcedKill = true
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
