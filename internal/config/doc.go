// Package config loads, normalizes, and validates glimpse configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the daemon and CLI need, from scheduler timing to the endpoints of the
// external storage service, recognizer, and embedding index.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
