package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bioreader/internal/config"
)

const userAgent = "bioreader/1"

// Alerter pushes operator alerts outside the process.
type Alerter interface {
	NotifyDeviceFault(ctx context.Context, err error, operation string) error
	NotifyEnrolled(ctx context.Context, userID string, quality int) error
	TestNotification(ctx context.Context) error
}

// NewAlerter builds an ntfy alerter when a topic is configured and a noop
// alerter otherwise.
func NewAlerter(cfg *config.Config) Alerter {
	if cfg == nil || strings.TrimSpace(cfg.Alerts.NtfyTopic) == "" {
		return NoopAlerter{}
	}
	timeout := cfg.AlertTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyAlerter{
		endpoint:    strings.TrimSpace(cfg.Alerts.NtfyTopic),
		enrollments: cfg.Alerts.Enrollments,
		client:      &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyAlerter struct {
	endpoint    string
	enrollments bool
	client      *http.Client
}

func (n *ntfyAlerter) NotifyDeviceFault(ctx context.Context, err error, operation string) error {
	var b strings.Builder
	b.WriteString("Reader fault")
	if operation = strings.TrimSpace(operation); operation != "" {
		b.WriteString(" during ")
		b.WriteString(operation)
	}
	b.WriteString(": ")
	if err != nil {
		b.WriteString(strings.TrimSpace(err.Error()))
	} else {
		b.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "bioreader - Reader fault",
		message:  b.String(),
		tags:     []string{"bioreader", "fault", "warning"},
		priority: "high",
	})
}

func (n *ntfyAlerter) NotifyEnrolled(ctx context.Context, userID string, quality int) error {
	if !n.enrollments {
		return nil
	}
	return n.send(ctx, payload{
		title:   "bioreader - Enrolled",
		message: fmt.Sprintf("Enrolled %s (quality %d)", strings.TrimSpace(userID), quality),
		tags:    []string{"bioreader", "enroll"},
	})
}

func (n *ntfyAlerter) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "bioreader - Test",
		message:  "Notification system test",
		tags:     []string{"bioreader", "test"},
		priority: "low",
	})
}

func (n *ntfyAlerter) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NoopAlerter discards alerts.
type NoopAlerter struct{}

func (NoopAlerter) NotifyDeviceFault(context.Context, error, string) error { return nil }
func (NoopAlerter) NotifyEnrolled(context.Context, string, int) error      { return nil }
func (NoopAlerter) TestNotification(context.Context) error                 { return nil }
