package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir" default:"~/.local/share/bioreader"`
	LogDir   string `toml:"log_dir" default:"~/.local/share/bioreader/logs"`
}

// Device contains vendor SDK and session timing configuration.
type Device struct {
	// Driver selects the SDK binding: "native" or "simulated".
	Driver string `toml:"driver" default:"native"`
	// Library overrides the vendor library name or path.
	Library string `toml:"library"`
	// Port pins the serial port handed to the SDK before init. Empty lets
	// the SDK auto-detect.
	Port                    string   `toml:"port"`
	InitSettleMillis        int      `toml:"init_settle_ms" default:"800"`
	AlreadyInitSettleMillis int      `toml:"already_init_settle_ms" default:"500"`
	ReinitSettleMillis      int      `toml:"reinit_settle_ms" default:"500"`
	CaptureTimeoutSeconds   int      `toml:"capture_timeout_seconds"`
	DriverModules           []string `toml:"driver_modules"`
}

// Discovery contains serial port discovery configuration.
type Discovery struct {
	Enabled             bool     `toml:"enabled" default:"true"`
	Keywords            []string `toml:"keywords"`
	ProbeSettleMillis   int      `toml:"probe_settle_ms" default:"500"`
	ProbeInitMillis     int      `toml:"probe_init_ms" default:"300"`
	ProbeFailureMillis  int      `toml:"probe_failure_ms" default:"100"`
	ProbeTeardownMillis int      `toml:"probe_teardown_ms" default:"500"`
}

// Enrollment contains the multi-attempt capture policy.
type Enrollment struct {
	Attempts          int    `toml:"attempts" default:"3"`
	MinQuality        int    `toml:"min_quality" default:"90"`
	PlaceDelayMillis  int    `toml:"place_delay_ms" default:"500"`
	RemoveDelayMillis int    `toml:"remove_delay_ms" default:"2000"`
	DefaultFinger     string `toml:"default_finger" default:"right_index"`
}

// Verification contains match policy.
type Verification struct {
	MinPercent int `toml:"min_percent" default:"90"`
}

// Store contains template persistence configuration.
type Store struct {
	// Backend is "rest" (PostgREST/Supabase) or "sqlite".
	Backend               string `toml:"backend" default:"rest"`
	URL                   string `toml:"url"`
	APIKey                string `toml:"api_key"`
	Table                 string `toml:"table" default:"biometric_templates"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" default:"15"`
	SQLitePath            string `toml:"sqlite_path"`
}

// API contains the local HTTP API configuration.
type API struct {
	Bind  string `toml:"bind" default:"127.0.0.1:7488"`
	Token string `toml:"token"`
}

// Alerts contains push notification configuration.
type Alerts struct {
	// NtfyTopic is the full ntfy topic URL. Empty disables alerts.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" default:"10"`
	// Enrollments also announces new enrollments; faults are always sent.
	Enrollments bool `toml:"enrollments"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" default:"console"`
	Level         string `toml:"level" default:"info"`
	RetentionDays int    `toml:"retention_days" default:"30"`
}

// Config encapsulates all configuration values for bioreader.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Device: SDK binding selection, explicit port, session settle delays
//   - Discovery: serial port keyword matching and active probing
//   - Enrollment: attempt count, quality gate, operator prompts
//   - Verification: minimum match percent
//   - Store: remote or local template persistence
//   - API: local HTTP API bind address and token
//   - Alerts: ntfy push notifications for reader faults
//   - Logging: log format, level, and retention
type Config struct {
	Paths        Paths        `toml:"paths"`
	Device       Device       `toml:"device"`
	Discovery    Discovery    `toml:"discovery"`
	Enrollment   Enrollment   `toml:"enrollment"`
	Verification Verification `toml:"verification"`
	Store        Store        `toml:"store"`
	API          API          `toml:"api"`
	Alerts       Alerts       `toml:"alerts"`
	Logging      Logging      `toml:"logging"`
}

// DefaultKeywords are matched against serial port labels during discovery.
var DefaultKeywords = []string{"idbio", "fingerprint", "biometric", "digital", "nitgen", "suprema"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	var cfg Config
	defaults.SetDefaults(&cfg)
	cfg.Discovery.Keywords = append([]string(nil), DefaultKeywords...)
	return cfg
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bioreader/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment fallbacks applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bioreader.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the host-wide device ownership lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "bioreader.lock")
}

// PIDPath is where the daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "bioreader.pid")
}

// CaptureTimeout returns the per-attempt detect timeout. Zero means the
// capture waits indefinitely for a finger.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Device.CaptureTimeoutSeconds) * time.Second
}

// StoreTimeout returns the template store request timeout.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Store.RequestTimeoutSeconds) * time.Second
}

// AlertTimeout bounds a single ntfy request.
func (c *Config) AlertTimeout() time.Duration {
	return time.Duration(c.Alerts.RequestTimeoutSeconds) * time.Second
}

// Millis converts a millisecond config value to a duration.
func Millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Masked returns a copy with secrets replaced.
func (c Config) Masked() Config {
	if c.Store.APIKey != "" {
		c.Store.APIKey = "********"
	}
	if c.API.Token != "" {
		c.API.Token = "********"
	}
	return c
}

// Encode renders the configuration as TOML with secrets masked.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c.Masked())
}
