// Package reststore persists templates in a PostgREST table, the way a
// Supabase project exposes them under /rest/v1.
package reststore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bioreader/internal/logging"
	"bioreader/internal/services"
	"bioreader/internal/store"
)

const maxErrorBody = 512

// HTTPDoer describes the HTTP client used by the store.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds connection settings.
type Config struct {
	URL     string
	APIKey  string
	Table   string
	Timeout time.Duration
}

// Client is a store.Store backed by PostgREST.
type Client struct {
	baseURL string
	apiKey  string
	table   string
	client  HTTPDoer
	logger  *slog.Logger
}

// New returns a client. A nil doer uses an http.Client with cfg.Timeout.
func New(cfg Config, doer HTTPDoer, logger *slog.Logger) *Client {
	if doer == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "biometric_templates"
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		table:   table,
		client:  doer,
		logger:  logging.NewComponentLogger(logger, "reststore"),
	}
}

type row struct {
	ID       json.RawMessage `json:"id"`
	Template string          `json:"template"`
	Quality  *int            `json:"quality"`
	Finger   string          `json:"finger,omitempty"`
}

type insert struct {
	UserID   string `json:"user_id"`
	Template string `json:"template"`
	Quality  int    `json:"quality"`
	Finger   string `json:"finger"`
}

// List fetches every template stored for userID.
func (c *Client) List(ctx context.Context, userID string) ([]store.Template, error) {
	if userID == "" {
		return nil, store.ErrInvalidUser
	}
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("select", "id,template,quality")
	req, err := c.newRequest(ctx, http.MethodGet, "?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req, "list")
	if err != nil {
		return nil, err
	}
	var rows []row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "reststore", "list", "decode templates", err)
	}

	templates := make([]store.Template, 0, len(rows))
	for _, r := range rows {
		t := store.Template{
			ID:       rowID(r.ID),
			UserID:   userID,
			Template: []byte(r.Template),
			Finger:   r.Finger,
		}
		if r.Quality != nil {
			t.Quality = *r.Quality
		}
		templates = append(templates, t)
	}
	logging.WithContext(ctx, c.logger).Debug("templates fetched", logging.Int("count", len(templates)))
	return templates, nil
}

// Save inserts one template row.
func (c *Client) Save(ctx context.Context, e store.Enrollment) error {
	if e.UserID == "" {
		return store.ErrInvalidUser
	}
	payload, err := json.Marshal(insert{
		UserID:   e.UserID,
		Template: string(e.Template),
		Quality:  e.Quality,
		Finger:   e.Finger,
	})
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	if _, err := c.do(req, "save"); err != nil {
		return err
	}
	logging.WithContext(ctx, c.logger).Info("template stored",
		logging.String(logging.FieldEventType, "template_stored"),
		logging.Int("quality", e.Quality),
		logging.String("finger", e.Finger),
	)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, suffix string, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "reststore", strings.ToLower(method), "store url and api key are required", nil)
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s%s", c.baseURL, url.PathEscape(c.table), suffix)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		marker := services.ErrExternalService
		if req.Context().Err() != nil {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, "reststore", operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "reststore", operation, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(body))
		if len(detail) > maxErrorBody {
			detail = detail[:maxErrorBody] + "..."
		}
		return nil, services.Wrap(services.ErrExternalService, "reststore", operation,
			fmt.Sprintf("status %d: %s", resp.StatusCode, detail), nil)
	}
	return body, nil
}

// PostgREST returns numeric or uuid keys depending on the table.
func rowID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
