package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bioreader/internal/config"
)

func TestDefaultAppliesTagDefaults(t *testing.T) {
	cfg := config.Default()

	if cfg.Enrollment.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", cfg.Enrollment.Attempts)
	}
	if cfg.Enrollment.MinQuality != 90 {
		t.Fatalf("min quality = %d, want 90", cfg.Enrollment.MinQuality)
	}
	if cfg.Enrollment.RemoveDelayMillis != 2000 || cfg.Enrollment.PlaceDelayMillis != 500 {
		t.Fatalf("unexpected enrollment delays: %+v", cfg.Enrollment)
	}
	if cfg.Enrollment.DefaultFinger != "right_index" {
		t.Fatalf("default finger = %q", cfg.Enrollment.DefaultFinger)
	}
	if !cfg.Discovery.Enabled {
		t.Fatal("expected discovery enabled by default")
	}
	if len(cfg.Discovery.Keywords) != len(config.DefaultKeywords) {
		t.Fatalf("keywords = %v", cfg.Discovery.Keywords)
	}
	if cfg.Device.InitSettleMillis != 800 || cfg.Device.AlreadyInitSettleMillis != 500 {
		t.Fatalf("unexpected settle delays: %+v", cfg.Device)
	}
	if cfg.Device.CaptureTimeoutSeconds != 0 {
		t.Fatal("expected unbounded capture wait by default")
	}
	if cfg.Store.Backend != "rest" || cfg.Store.Table != "biometric_templates" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
}

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
	t.Setenv("IDBIO_PORT", "COM7")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "bioreader")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("state dir = %q, want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Store.URL != "https://example.supabase.co" {
		t.Fatalf("store url = %q", cfg.Store.URL)
	}
	if cfg.Store.APIKey != "service-key" {
		t.Fatalf("store api key = %q", cfg.Store.APIKey)
	}
	if cfg.Device.Port != "COM7" {
		t.Fatalf("device port = %q", cfg.Device.Port)
	}
	if cfg.Store.SQLitePath != filepath.Join(wantState, "templates.db") {
		t.Fatalf("sqlite path = %q", cfg.Store.SQLitePath)
	}
	if err := cfg.RequireStore(); err != nil {
		t.Fatalf("RequireStore: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("IDBIO_PORT", "COM9")
	path := filepath.Join(t.TempDir(), "bioreader.toml")
	content := `
[device]
driver = "Simulated"
port = "/dev/ttyACM0"

[discovery]
enabled = false
keywords = [" IDBIO ", ""]

[enrollment]
attempts = 5

[store]
backend = "sqlite"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Device.Driver != "simulated" {
		t.Fatalf("driver = %q", cfg.Device.Driver)
	}
	if cfg.Device.Port != "/dev/ttyACM0" {
		t.Fatalf("file port should win over env, got %q", cfg.Device.Port)
	}
	if cfg.Discovery.Enabled {
		t.Fatal("expected discovery disabled")
	}
	if len(cfg.Discovery.Keywords) != 1 || cfg.Discovery.Keywords[0] != "idbio" {
		t.Fatalf("keywords = %v", cfg.Discovery.Keywords)
	}
	if cfg.Enrollment.Attempts != 5 || cfg.Enrollment.MinQuality != 90 {
		t.Fatalf("unexpected enrollment: %+v", cfg.Enrollment)
	}
	if err := cfg.RequireStore(); err != nil {
		t.Fatalf("sqlite backend should not need remote credentials: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"driver", func(c *config.Config) { c.Device.Driver = "usb" }, "device.driver"},
		{"attempts", func(c *config.Config) { c.Enrollment.Attempts = 0 }, "enrollment.attempts"},
		{"quality", func(c *config.Config) { c.Enrollment.MinQuality = 101 }, "enrollment.min_quality"},
		{"percent", func(c *config.Config) { c.Verification.MinPercent = -1 }, "verification.min_percent"},
		{"backend", func(c *config.Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"timeout", func(c *config.Config) { c.Device.CaptureTimeoutSeconds = -5 }, "device.capture_timeout_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestRequireStoreMissingCredentials(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireStore(); err == nil || !strings.Contains(err.Error(), "store.url") {
		t.Fatalf("expected store.url error, got %v", err)
	}
	cfg.Store.URL = "https://example"
	if err := cfg.RequireStore(); err == nil || !strings.Contains(err.Error(), "store.api_key") {
		t.Fatalf("expected store.api_key error, got %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Enrollment.MinQuality != 90 {
		t.Fatalf("sample min quality = %d", cfg.Enrollment.MinQuality)
	}
}

func TestEncodeMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Store.APIKey = "s3cr3t-key"
	cfg.API.Token = "t0ken-value"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "s3cr3t-key") || strings.Contains(string(data), "t0ken-value") {
		t.Fatalf("secrets leaked: %s", data)
	}
	if cfg.Store.APIKey != "s3cr3t-key" {
		t.Fatal("Encode must not mutate the receiver")
	}
}
