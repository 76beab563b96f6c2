package daemon_test

import (
	"context"
	"errors"
	"testing"

	"bioreader/internal/api"
	"bioreader/internal/app"
	"bioreader/internal/config"
	"bioreader/internal/daemon"
	"bioreader/internal/device"
	"bioreader/internal/logging"
	"bioreader/internal/testsupport"
	"bioreader/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	rt, err := app.Build(context.Background(), cfg, logging.NewNop(), app.Options{})
	if err != nil {
		t.Fatalf("app.Build: %v", err)
	}
	d, err := daemon.New(cfg, rt, "test")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories(), testsupport.WithAPIToken("secret"))
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() || d.Addr() == "" {
		t.Fatal("expected daemon to report running with a bound address")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	client := api.NewClient(d.Addr(), "secret", nil)
	out, err := client.Validate(ctx, workflow.Request{UserID: "alice"})
	if err != nil {
		t.Fatalf("Validate over HTTP: %v", err)
	}
	if !out.Enrolled {
		t.Fatalf("outcome = %+v", out)
	}
	st := d.Status(ctx)
	if st.Session.State != "ready" || st.Preflight == nil || !st.Preflight.Ready {
		t.Fatalf("status = %+v", st)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to be stopped")
	}
	if err := client.Health(ctx); err == nil {
		t.Fatal("api still answering after stop")
	}
}

func TestSecondDaemonIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	first := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	second := newDaemon(t, cfg)
	if err := second.Start(context.Background()); !errors.Is(err, device.ErrDeviceLocked) {
		t.Fatalf("expected lock error, got %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("lock not released by Stop: %v", err)
	}
}
