package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SettingsStore persists exclusion settings as JSON so filter updates
// survive restarts. Writes go through a temp file and rename so a crash
// mid-write never leaves a truncated settings file.
type SettingsStore struct {
	path string
}

// NewSettingsStore returns a store rooted at path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Load reads the persisted settings. A missing file returns the defaults
// without error; a corrupt file returns the defaults alongside the parse
// error so the caller can log and continue.
func (s *SettingsStore) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), fmt.Errorf("read exclusion settings: %w", err)
	}
	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("parse exclusion settings %s: %w", s.path, err)
	}
	return settings, nil
}

// Save writes settings to disk atomically.
func (s *SettingsStore) Save(settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	payload, err := json.MarshalIndent(settingsPayload(settings), "", "  ")
	if err != nil {
		return fmt.Errorf("encode exclusion settings: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write exclusion settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace exclusion settings: %w", err)
	}
	return nil
}

// settingsPayload guarantees the persisted lists serialize as [] instead
// of null so other readers of the file see stable shapes.
func settingsPayload(settings Settings) Settings {
	if settings.Processes == nil {
		settings.Processes = []string{}
	}
	if settings.Titles == nil {
		settings.Titles = []string{}
	}
	return settings
}
