package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"bioreader/internal/api"
	"bioreader/internal/app"
	"bioreader/internal/device"
	"bioreader/internal/notifications"
	"bioreader/internal/workflow"
)

// reader is the device surface the commands drive, either in-process or
// through the daemon.
type reader interface {
	Validate(ctx context.Context, req workflow.Request) (workflow.Outcome, error)
	TestConnection(ctx context.Context, port string) (workflow.ConnectionReport, error)
	Initialize(ctx context.Context, port string) (device.Status, error)
	Reinitialize(ctx context.Context) (device.Status, error)
	Ports(ctx context.Context, probe bool) (workflow.PortsReport, error)
	Status(ctx context.Context) (api.StatusResponse, error)
	Close() error
}

type localReader struct {
	rt *app.Runtime
}

func (l *localReader) Validate(ctx context.Context, req workflow.Request) (workflow.Outcome, error) {
	return l.rt.Engine.ValidateOrEnroll(ctx, req)
}

func (l *localReader) TestConnection(ctx context.Context, port string) (workflow.ConnectionReport, error) {
	return l.rt.Engine.TestConnection(ctx, port)
}

func (l *localReader) Initialize(ctx context.Context, port string) (device.Status, error) {
	return l.rt.Engine.Initialize(ctx, port)
}

func (l *localReader) Reinitialize(ctx context.Context) (device.Status, error) {
	return l.rt.Engine.Reinitialize(ctx)
}

func (l *localReader) Ports(ctx context.Context, probe bool) (workflow.PortsReport, error) {
	return l.rt.Engine.Ports(ctx, probe)
}

func (l *localReader) Status(ctx context.Context) (api.StatusResponse, error) {
	pf := l.rt.Preflight(ctx)
	return api.StatusResponse{
		Version:   version,
		PID:       os.Getpid(),
		Session:   l.rt.Engine.Status(),
		Busy:      l.rt.Engine.Busy(),
		Preflight: &pf,
	}, nil
}

func (l *localReader) Close() error {
	return l.rt.Close()
}

type remoteReader struct {
	client *api.Client

	stopOnce sync.Once
	stop     context.CancelFunc
	done     chan struct{}
}

func (r *remoteReader) Validate(ctx context.Context, req workflow.Request) (workflow.Outcome, error) {
	return r.client.Validate(ctx, req)
}

func (r *remoteReader) TestConnection(ctx context.Context, port string) (workflow.ConnectionReport, error) {
	return r.client.TestConnection(ctx, port)
}

func (r *remoteReader) Initialize(ctx context.Context, port string) (device.Status, error) {
	return r.client.Initialize(ctx, port)
}

func (r *remoteReader) Reinitialize(ctx context.Context) (device.Status, error) {
	return r.client.Reinitialize(ctx)
}

func (r *remoteReader) Ports(ctx context.Context, probe bool) (workflow.PortsReport, error) {
	return r.client.Ports(ctx, probe)
}

func (r *remoteReader) Status(ctx context.Context) (api.StatusResponse, error) {
	return r.client.Status(ctx)
}

// follow prints the daemon's operator instructions to out until Close.
// Events already buffered before the call are skipped: a cursor past the
// newest event returns the hub head.
func (r *remoteReader) follow(ctx context.Context, out io.Writer) {
	head, err := r.client.Events(ctx, math.MaxUint64, false)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.stop = cancel
	r.done = make(chan struct{})
	colorize := shouldColorize(out)

	go func() {
		defer close(r.done)
		since := head.Next
		for ctx.Err() == nil {
			resp, err := r.client.Events(ctx, since, true)
			if err != nil {
				return
			}
			for _, evt := range resp.Events {
				if evt.Kind == notifications.KindInstruction {
					fmt.Fprintln(out, renderInstruction(evt.Message, colorize))
				}
			}
			since = resp.Next
		}
	}()
}

func (r *remoteReader) Close() error {
	r.stopOnce.Do(func() {
		if r.stop != nil {
			r.stop()
			<-r.done
		}
	})
	return nil
}
