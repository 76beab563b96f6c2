package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bioreader/internal/config"
	"bioreader/internal/notifications"
)

func TestNewAlerterReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	alerter := notifications.NewAlerter(&cfg)
	if _, ok := alerter.(notifications.NoopAlerter); !ok {
		t.Fatalf("expected noop alerter, got %T", alerter)
	}
	if err := alerter.NotifyDeviceFault(context.Background(), errors.New("x"), "validate"); err != nil {
		t.Fatalf("noop returned %v", err)
	}
}

type captured struct {
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func ntfyServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		got.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, got
}

func TestNtfyAlerterFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		enrollments    bool
		send           func(notifications.Alerter) error
		expectCalls    int
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "device fault",
			send: func(a notifications.Alerter) error {
				return a.NotifyDeviceFault(context.Background(), errors.New("device not found"), "validate")
			},
			expectCalls:    1,
			expectTitle:    "bioreader - Reader fault",
			expectMessage:  "Reader fault during validate: device not found",
			expectTags:     "bioreader,fault,warning",
			expectPriority: "high",
		},
		{
			name:        "enrollment enabled",
			enrollments: true,
			send: func(a notifications.Alerter) error {
				return a.NotifyEnrolled(context.Background(), "alice", 95)
			},
			expectCalls:   1,
			expectTitle:   "bioreader - Enrolled",
			expectMessage: "Enrolled alice (quality 95)",
			expectTags:    "bioreader,enroll",
		},
		{
			name: "enrollment suppressed",
			send: func(a notifications.Alerter) error {
				return a.NotifyEnrolled(context.Background(), "alice", 95)
			},
		},
		{
			name:           "test",
			send:           func(a notifications.Alerter) error { return a.TestNotification(context.Background()) },
			expectCalls:    1,
			expectTitle:    "bioreader - Test",
			expectMessage:  "Notification system test",
			expectTags:     "bioreader,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := ntfyServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Alerts.NtfyTopic = server.URL
			cfg.Alerts.Enrollments = tc.enrollments

			if err := tc.send(notifications.NewAlerter(&cfg)); err != nil {
				t.Fatalf("alert returned error: %v", err)
			}
			if got.calls != tc.expectCalls {
				t.Fatalf("calls = %d, want %d", got.calls, tc.expectCalls)
			}
			if tc.expectCalls == 0 {
				return
			}
			if got.title != tc.expectTitle || got.body != tc.expectMessage {
				t.Fatalf("title %q body %q", got.title, got.body)
			}
			if got.tags != tc.expectTags || got.priority != tc.expectPriority {
				t.Fatalf("tags %q priority %q", got.tags, got.priority)
			}
		})
	}
}

func TestNtfyAlerterReportsHTTPFailure(t *testing.T) {
	server, _ := ntfyServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Alerts.NtfyTopic = server.URL
	if err := notifications.NewAlerter(&cfg).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403")
	}
}
