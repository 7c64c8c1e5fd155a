package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and endpoint configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	ControlSocket string `toml:"control_socket"`
}

// Capture contains scheduler timing and frame processing settings.
type Capture struct {
	PollIntervalMillis  int `toml:"poll_interval_ms"`
	CaptureInterval     int `toml:"capture_interval"`
	MaxPending          int `toml:"max_pending"`
	FocusSettleMillis   int `toml:"focus_settle_ms"`
	MaxSide             int `toml:"max_side"`
	JPEGQuality         int `toml:"jpeg_quality"`
	RedundancyThreshold int `toml:"redundancy_threshold"`
	HistorySize         int `toml:"history_size"`
}

// Storage contains configuration for the external encrypted storage service.
type Storage struct {
	ServiceSocket  string `toml:"service_socket"`
	ConnectTimeout int    `toml:"connect_timeout"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Recognizer contains configuration for the external text recognizer.
type Recognizer struct {
	Socket              string  `toml:"socket"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	RequestTimeout      int     `toml:"request_timeout"`
}

// Index contains configuration for the semantic embedding index.
type Index struct {
	Enabled             bool   `toml:"enabled"`
	DSN                 string `toml:"dsn"`
	Collection          string `toml:"collection"`
	OverfetchMultiplier int    `toml:"overfetch_multiplier"`
}

// Control contains configuration for the command channel.
type Control struct {
	AuthToken string `toml:"auth_token"`
}

// Retention contains configuration for the store maintenance sweep.
type Retention struct {
	Days          int `toml:"days"`
	SweepInterval int `toml:"sweep_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for glimpse.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the control socket path
//   - Capture: scheduler timing, backpressure, and frame encoding knobs
//   - Storage: external encrypted storage service endpoint
//   - Recognizer: external text recognizer endpoint and filtering
//   - Index: semantic embedding index (Postgres + pgvector)
//   - Control: command channel authentication
//   - Retention: old-record cleanup sweep
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Capture    Capture    `toml:"capture"`
	Storage    Storage    `toml:"storage"`
	Recognizer Recognizer `toml:"recognizer"`
	Index      Index      `toml:"index"`
	Control    Control    `toml:"control"`
	Retention  Retention  `toml:"retention"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/glimpse/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("glimpse.toml")
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
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the relational store database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "ocr_data.db")
}

// FiltersPath returns the location of the persisted exclusion settings.
func (c *Config) FiltersPath() string {
	return filepath.Join(c.Paths.DataDir, "monitor_filters.json")
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
