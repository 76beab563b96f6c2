package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bioreader/internal/device"
	"bioreader/internal/services"
	"bioreader/internal/workflow"
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to a running daemon.
type Client struct {
	base  string
	token string
	doer  HTTPDoer
}

// NewClient builds a client for bind (host:port or a full URL). A nil doer
// uses an http.Client without a timeout; captures wait for a finger.
func NewClient(bind, token string, doer HTTPDoer) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if doer == nil {
		doer = &http.Client{}
	}
	return &Client{base: base, token: token, doer: doer}
}

// Health succeeds when the daemon answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// Status fetches daemon and session status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Validate runs validate-or-enroll on the daemon.
func (c *Client) Validate(ctx context.Context, req workflow.Request) (workflow.Outcome, error) {
	var out workflow.Outcome
	err := c.do(ctx, http.MethodPost, "/api/validate", req, &out)
	return out, err
}

// Initialize brings the daemon's reader session up.
func (c *Client) Initialize(ctx context.Context, port string) (device.Status, error) {
	var st device.Status
	err := c.do(ctx, http.MethodPost, "/api/device/initialize", PortRequest{Port: port}, &st)
	return st, err
}

// Reinitialize restarts the daemon's reader session.
func (c *Client) Reinitialize(ctx context.Context) (device.Status, error) {
	var st device.Status
	err := c.do(ctx, http.MethodPost, "/api/device/reinitialize", nil, &st)
	return st, err
}

// TestConnection runs the connection diagnostic on the daemon.
func (c *Client) TestConnection(ctx context.Context, port string) (workflow.ConnectionReport, error) {
	var report workflow.ConnectionReport
	err := c.do(ctx, http.MethodPost, "/api/device/test", PortRequest{Port: port}, &report)
	return report, err
}

// Ports lists serial ports, optionally probing them.
func (c *Client) Ports(ctx context.Context, probe bool) (workflow.PortsReport, error) {
	var report workflow.PortsReport
	err := c.do(ctx, http.MethodGet, "/api/ports?probe="+strconv.FormatBool(probe), nil, &report)
	return report, err
}

// Events fetches events after since. With wait set the daemon holds the
// request until an event arrives or its long-poll window ends.
func (c *Client) Events(ctx context.Context, since uint64, wait bool) (EventsResponse, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatUint(since, 10))
	q.Set("wait", strconv.FormatBool(wait))
	var resp EventsResponse
	err := c.do(ctx, http.MethodGet, "/api/events?"+q.Encode(), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "api", "client", "invalid daemon address", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "api", "client", "daemon unreachable", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := &RemoteError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, &remote.Response); jsonErr != nil {
			remote.Response.Error = strings.TrimSpace(string(data))
		}
		return remote
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
