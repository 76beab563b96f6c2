package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"bioreader/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It selects the simulated reader, a local sqlite store and zero delays so
// workflows run instantly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Device.Driver = "simulated"
	cfgVal.Device.InitSettleMillis = 0
	cfgVal.Device.AlreadyInitSettleMillis = 0
	cfgVal.Device.ReinitSettleMillis = 0
	cfgVal.Discovery.ProbeSettleMillis = 0
	cfgVal.Discovery.ProbeInitMillis = 0
	cfgVal.Discovery.ProbeFailureMillis = 0
	cfgVal.Discovery.ProbeTeardownMillis = 0
	cfgVal.Enrollment.PlaceDelayMillis = 0
	cfgVal.Enrollment.RemoveDelayMillis = 0
	cfgVal.Store.Backend = "sqlite"
	cfgVal.Store.SQLitePath = filepath.Join(cfgVal.Paths.StateDir, "templates.db")
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRESTStore points the config at a remote template store.
func WithRESTStore(url, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = "rest"
		b.cfg.Store.URL = url
		b.cfg.Store.APIKey = apiKey
	}
}

// WithPort pins the reader serial port.
func WithPort(port string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.Port = port
	}
}

// WithAPIToken enables bearer authentication on the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithDirectories creates the state and log directories.
func WithDirectories() ConfigOption {
	return func(b *configBuilder) {
		b.t.Helper()
		for _, dir := range []string{b.cfg.Paths.StateDir, b.cfg.Paths.LogDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				b.t.Fatalf("mkdir %s: %v", dir, err)
			}
		}
	}
}

// BaseDir returns a ConfigOption that reports the temp root to dst.
func BaseDir(dst *string) ConfigOption {
	return func(b *configBuilder) {
		*dst = b.baseDir
	}
}
