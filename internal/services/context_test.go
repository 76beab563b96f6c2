package services_test

import (
	"context"
	"testing"

	"bioreader/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "req-1")
	ctx = services.WithUserID(ctx, "user-42")
	ctx = services.WithOperation(ctx, "verify")

	if got, ok := services.RequestIDFromContext(ctx); !ok || got != "req-1" {
		t.Fatalf("request id = %q, %v", got, ok)
	}
	if got, ok := services.UserIDFromContext(ctx); !ok || got != "user-42" {
		t.Fatalf("user id = %q, %v", got, ok)
	}
	if got, ok := services.OperationFromContext(ctx); !ok || got != "verify" {
		t.Fatalf("operation = %q, %v", got, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	ctx := services.WithUserID(context.Background(), "")
	if _, ok := services.UserIDFromContext(ctx); ok {
		t.Fatal("expected empty user id to be ignored")
	}
	if _, ok := services.RequestIDFromContext(context.Background()); ok {
		t.Fatal("expected no request id on bare context")
	}
}
