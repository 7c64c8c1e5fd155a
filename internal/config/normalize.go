package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if trimmed := strings.TrimSpace(c.Paths.ControlSocket); trimmed != "" {
		if c.Paths.ControlSocket, err = expandPath(trimmed); err != nil {
			return err
		}
	} else {
		c.Paths.ControlSocket = ""
	}

	c.Storage.ServiceSocket = strings.TrimSpace(c.Storage.ServiceSocket)
	c.Recognizer.Socket = strings.TrimSpace(c.Recognizer.Socket)
	c.Index.DSN = strings.TrimSpace(c.Index.DSN)
	c.Index.Collection = strings.TrimSpace(c.Index.Collection)
	c.Control.AuthToken = strings.TrimSpace(c.Control.AuthToken)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Capture.PollIntervalMillis <= 0 {
		c.Capture.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Capture.CaptureInterval <= 0 {
		c.Capture.CaptureInterval = defaultCaptureInterval
	}
	if c.Capture.MaxPending < 0 {
		c.Capture.MaxPending = defaultMaxPending
	}
	if c.Capture.FocusSettleMillis < 0 {
		c.Capture.FocusSettleMillis = defaultFocusSettleMillis
	}
	if c.Capture.MaxSide <= 0 {
		c.Capture.MaxSide = defaultMaxSide
	}
	if c.Capture.JPEGQuality <= 0 || c.Capture.JPEGQuality > 100 {
		c.Capture.JPEGQuality = defaultJPEGQuality
	}
	if c.Capture.RedundancyThreshold <= 0 {
		c.Capture.RedundancyThreshold = defaultRedundancyThreshold
	}
	if c.Capture.HistorySize <= 0 {
		c.Capture.HistorySize = defaultHistorySize
	}
	if c.Storage.ConnectTimeout <= 0 {
		c.Storage.ConnectTimeout = defaultConnectTimeout
	}
	if c.Storage.RequestTimeout <= 0 {
		c.Storage.RequestTimeout = defaultRequestTimeout
	}
	if c.Recognizer.RequestTimeout <= 0 {
		c.Recognizer.RequestTimeout = defaultRecognizerTimeout
	}
	if c.Index.Collection == "" {
		c.Index.Collection = defaultIndexCollection
	}
	if c.Index.OverfetchMultiplier <= 0 {
		c.Index.OverfetchMultiplier = defaultOverfetchMultiplier
	}
	if c.Retention.SweepInterval <= 0 {
		c.Retention.SweepInterval = defaultSweepInterval
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
