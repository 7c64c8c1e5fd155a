package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"glimpse/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ControlSocket = filepath.Join(base, "control.sock")
	cfgVal.Storage.ServiceSocket = filepath.Join(base, "storage.sock")
	cfgVal.Recognizer.Socket = filepath.Join(base, "recognizer.sock")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{cfgVal.Paths.DataDir, cfgVal.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

// WithAuthToken sets the control channel token on the test config.
func WithAuthToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Control.AuthToken = token
	}
}

// WithRetention enables the retention sweep on the test config.
func WithRetention(days, sweepIntervalSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retention.Days = days
		b.cfg.Retention.SweepInterval = sweepIntervalSeconds
	}
}
