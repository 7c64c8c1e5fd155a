package capture

import "sync"

// IconSource extracts a small base64-encoded PNG icon for an executable.
// Implementations are platform specific and may return "" when no icon is
// available.
type IconSource interface {
	Icon(exePath string) string
}

// IconCache memoizes icon extraction per executable path. Extraction walks
// the executable's resources, which is far too slow to repeat on every
// capture of the same application.
type IconCache struct {
	source IconSource

	mu    sync.Mutex
	icons map[string]string
}

// NewIconCache wraps source with a cache. A nil source yields a cache that
// always returns "".
func NewIconCache(source IconSource) *IconCache {
	return &IconCache{source: source, icons: make(map[string]string)}
}

// Icon returns the cached icon for exePath, extracting it on first use.
// Failed extractions are cached as "" so broken executables are probed once.
func (c *IconCache) Icon(exePath string) string {
	if exePath == "" || c.source == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if icon, ok := c.icons[exePath]; ok {
		return icon
	}
	icon := c.source.Icon(exePath)
	c.icons[exePath] = icon
	return icon
}

// Len returns the number of cached entries.
func (c *IconCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.icons)
}
