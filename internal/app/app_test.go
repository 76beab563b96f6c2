package app_test

import (
	"context"
	"errors"
	"testing"

	"bioreader/internal/app"
	"bioreader/internal/device"
	"bioreader/internal/logging"
	"bioreader/internal/notifications"
	"bioreader/internal/services"
	"bioreader/internal/store/sqlitestore"
	"bioreader/internal/testsupport"
	"bioreader/internal/workflow"
)

func TestBuildRunsEnrollThenVerify(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	rec := &notifications.Recorder{}
	rt, err := app.Build(context.Background(), cfg, logging.NewNop(), app.Options{Sink: rec})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	if _, ok := rt.Store.(*sqlitestore.Store); !ok {
		t.Fatalf("store = %T, want sqlite", rt.Store)
	}

	ctx := context.Background()
	out, err := rt.Engine.ValidateOrEnroll(ctx, workflow.Request{UserID: "alice"})
	if err != nil || !out.Enrolled {
		t.Fatalf("enroll = %+v, %v", out, err)
	}
	out, err = rt.Engine.ValidateOrEnroll(ctx, workflow.Request{UserID: "alice"})
	if err != nil || !out.Success || out.Enrolled || *out.Percent != 100 {
		t.Fatalf("verify = %+v, %v", out, err)
	}
	if len(rec.Messages()) == 0 {
		t.Fatal("extra sink received no instructions")
	}
	if events, _ := rt.Hub.Tail(0); len(events) == 0 {
		t.Fatal("hub received no events")
	}
	if st := rt.Preflight(ctx); !st.Ready {
		t.Fatalf("preflight = %+v", st)
	}
}

func TestSecondRuntimeIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	first, err := app.Build(context.Background(), cfg, nil, app.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := first.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })

	second, err := app.Build(context.Background(), cfg, nil, app.Options{Store: first.Store})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := second.Start(); !errors.Is(err, device.ErrDeviceLocked) {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestUnconfiguredRESTStore(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories(), testsupport.WithRESTStore("", ""))
	rt, err := app.Build(context.Background(), cfg, nil, app.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rt.Store != nil {
		t.Fatalf("store = %T, want nil", rt.Store)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	_, err = rt.Engine.ValidateOrEnroll(context.Background(), workflow.Request{UserID: "alice"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := rt.Engine.TestConnection(context.Background(), ""); err != nil {
		t.Fatalf("device commands should work without a store: %v", err)
	}
}
