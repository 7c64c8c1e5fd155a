// Package logging assembles structured slog loggers and attribute helpers
// used across glimpse components.
//
// It owns the console/JSON handler selection, level plumbing, and the
// standardized field names components use to tag log lines. A no-op logger
// is provided for tests and wiring code that cannot fail.
package logging
