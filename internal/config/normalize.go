package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDevice()
	c.normalizeDiscovery()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeAlerts()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeAlerts() {
	c.Alerts.NtfyTopic = strings.TrimSpace(c.Alerts.NtfyTopic)
	if c.Alerts.NtfyTopic == "" {
		c.Alerts.NtfyTopic = strings.TrimSpace(os.Getenv("BIOREADER_NTFY_TOPIC"))
	}
	if c.Alerts.RequestTimeoutSeconds <= 0 {
		c.Alerts.RequestTimeoutSeconds = 10
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDevice() {
	c.Device.Driver = strings.ToLower(strings.TrimSpace(c.Device.Driver))
	if c.Device.Driver == "" {
		c.Device.Driver = "native"
	}
	c.Device.Library = strings.TrimSpace(c.Device.Library)
	c.Device.Port = strings.TrimSpace(c.Device.Port)
	if c.Device.Port == "" {
		if value, ok := os.LookupEnv("IDBIO_PORT"); ok {
			c.Device.Port = strings.TrimSpace(value)
		}
	}
	c.Device.DriverModules = trimList(c.Device.DriverModules)
}

func (c *Config) normalizeDiscovery() {
	keywords := trimList(c.Discovery.Keywords)
	for i, kw := range keywords {
		keywords[i] = strings.ToLower(kw)
	}
	if len(keywords) == 0 {
		keywords = append(keywords, DefaultKeywords...)
	}
	c.Discovery.Keywords = keywords
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.URL == "" {
		if value, ok := os.LookupEnv("SUPABASE_URL"); ok {
			c.Store.URL = value
		}
	}
	if c.Store.APIKey == "" {
		if value, ok := os.LookupEnv("SUPABASE_SERVICE_ROLE_KEY"); ok {
			c.Store.APIKey = value
		}
	}
	c.Store.URL = strings.TrimRight(strings.TrimSpace(c.Store.URL), "/")
	c.Store.APIKey = strings.TrimSpace(c.Store.APIKey)
	c.Store.Table = strings.TrimSpace(c.Store.Table)
	if c.Store.Table == "" {
		c.Store.Table = "biometric_templates"
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = filepath.Join(c.Paths.StateDir, "templates.db")
	}
	var err error
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
