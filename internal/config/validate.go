package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateRecognizer(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Capture.RedundancyThreshold > 256 {
		return fmt.Errorf("capture.redundancy_threshold %d exceeds hash width", c.Capture.RedundancyThreshold)
	}
	return nil
}

func (c *Config) validateRecognizer() error {
	if c.Recognizer.ConfidenceThreshold < 0 || c.Recognizer.ConfidenceThreshold > 1 {
		return errors.New("recognizer.confidence_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateIndex() error {
	if c.Index.Enabled && c.Index.DSN == "" {
		return errors.New("index.dsn is required when index.enabled is true")
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
	return nil
}
