package config

const (
	defaultDataDir             = "~/.local/share/glimpse"
	defaultLogDir              = "~/.local/share/glimpse/logs"
	defaultPollIntervalMillis  = 500
	defaultCaptureInterval     = 10
	defaultMaxPending          = 1
	defaultFocusSettleMillis   = 500
	defaultMaxSide             = 1600
	defaultJPEGQuality         = 75
	defaultRedundancyThreshold = 10
	defaultHistorySize         = 3
	defaultConnectTimeout      = 5
	defaultRequestTimeout      = 30
	defaultRecognizerTimeout   = 60
	defaultConfidence          = 0.5
	defaultIndexCollection     = "screenshots"
	defaultOverfetchMultiplier = 2
	defaultRetentionDays       = 0
	defaultSweepInterval       = 3600
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Capture: Capture{
			PollIntervalMillis:  defaultPollIntervalMillis,
			CaptureInterval:     defaultCaptureInterval,
			MaxPending:          defaultMaxPending,
			FocusSettleMillis:   defaultFocusSettleMillis,
			MaxSide:             defaultMaxSide,
			JPEGQuality:         defaultJPEGQuality,
			RedundancyThreshold: defaultRedundancyThreshold,
			HistorySize:         defaultHistorySize,
		},
		Storage: Storage{
			ConnectTimeout: defaultConnectTimeout,
			RequestTimeout: defaultRequestTimeout,
		},
		Recognizer: Recognizer{
			ConfidenceThreshold: defaultConfidence,
			RequestTimeout:      defaultRecognizerTimeout,
		},
		Index: Index{
			Enabled:             false,
			Collection:          defaultIndexCollection,
			OverfetchMultiplier: defaultOverfetchMultiplier,
		},
		Retention: Retention{
			Days:          defaultRetentionDays,
			SweepInterval: defaultSweepInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
