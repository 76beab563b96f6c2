package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateEnrollment(); err != nil {
		return err
	}
	if err := c.validateVerification(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDevice() error {
	switch c.Device.Driver {
	case "native", "simulated":
	default:
		return fmt.Errorf("device.driver: unsupported value %q (want native or simulated)", c.Device.Driver)
	}
	for name, v := range map[string]int{
		"device.init_settle_ms":          c.Device.InitSettleMillis,
		"device.already_init_settle_ms":  c.Device.AlreadyInitSettleMillis,
		"device.reinit_settle_ms":        c.Device.ReinitSettleMillis,
		"device.capture_timeout_seconds": c.Device.CaptureTimeoutSeconds,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	for name, v := range map[string]int{
		"discovery.probe_settle_ms":   c.Discovery.ProbeSettleMillis,
		"discovery.probe_init_ms":     c.Discovery.ProbeInitMillis,
		"discovery.probe_failure_ms":  c.Discovery.ProbeFailureMillis,
		"discovery.probe_teardown_ms": c.Discovery.ProbeTeardownMillis,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	return nil
}

func (c *Config) validateEnrollment() error {
	if c.Enrollment.Attempts < 1 {
		return errors.New("enrollment.attempts must be at least 1")
	}
	if c.Enrollment.MinQuality < 0 || c.Enrollment.MinQuality > 100 {
		return errors.New("enrollment.min_quality must be between 0 and 100")
	}
	if c.Enrollment.PlaceDelayMillis < 0 || c.Enrollment.RemoveDelayMillis < 0 {
		return errors.New("enrollment delays must be >= 0")
	}
	if c.Enrollment.DefaultFinger == "" {
		return errors.New("enrollment.default_finger must be set")
	}
	return nil
}

func (c *Config) validateVerification() error {
	if c.Verification.MinPercent < 0 || c.Verification.MinPercent > 100 {
		return errors.New("verification.min_percent must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "rest", "sqlite":
	default:
		return fmt.Errorf("store.backend: unsupported value %q (want rest or sqlite)", c.Store.Backend)
	}
	if c.Store.RequestTimeoutSeconds <= 0 {
		return errors.New("store.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

// RequireStore reports whether the configured backend has what it needs to
// serve requests. The REST backend needs a URL and key.
func (c *Config) RequireStore() error {
	if c.Store.Backend != "rest" {
		return nil
	}
	if c.Store.URL == "" {
		return errors.New("store.url is required for the rest backend. Set SUPABASE_URL or edit the config file (create with 'bioreader config init')")
	}
	if c.Store.APIKey == "" {
		return errors.New("store.api_key is required for the rest backend. Set SUPABASE_SERVICE_ROLE_KEY or edit the config file")
	}
	return nil
}
