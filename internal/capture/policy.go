package capture

import (
	"slices"
	"strings"
	"sync/atomic"
)

// Built-in privacy keywords matched case-sensitively against the raw title.
var privacyKeywords = []string{"InPrivate", "Incognito", "隐身", "私密", "无痕"}

// Built-in system surfaces never worth recording, matched exactly or as a
// title prefix.
var systemTitles = []string{
	"Windows Default Lock Screen",
	"Search",
	"Program Manager",
	"Task Switching",
}

// Browser hints that make the expensive command-line check worthwhile.
var browserKeywords = []string{"edge", "chrome", "firefox", "browser", "浏览器"}

// Command-line flags that indicate a private browsing session.
var privateBrowsingFlags = []string{"--incognito", "-inprivate", "-private", "--private-window"}

// Settings holds the user-tunable half of the exclusion policy. Process
// names and title keywords are stored lower-cased; the built-in rules are
// not part of Settings and cannot be disabled.
type Settings struct {
	Processes       []string `json:"processes"`
	Titles          []string `json:"titles"`
	IgnoreProtected bool     `json:"ignore_protected"`
}

// DefaultSettings returns the out-of-the-box policy: no user exclusions
// and capture-protected windows respected.
func DefaultSettings() Settings {
	return Settings{IgnoreProtected: true}
}

// normalized returns a copy with entries trimmed, lower-cased, deduplicated,
// and sorted deterministically.
func (s Settings) normalized() Settings {
	out := Settings{IgnoreProtected: s.IgnoreProtected}
	out.Processes = normalizeTerms(s.Processes)
	out.Titles = normalizeTerms(s.Titles)
	return out
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	slices.Sort(out)
	return out
}

// Policy evaluates whether a focused window must be skipped. The settings
// snapshot is swapped atomically so Excluded never sees a partial update.
type Policy struct {
	settings  atomic.Pointer[Settings]
	inspector Inspector
}

// NewPolicy returns a policy using inspector for the handle-based checks,
// seeded with the default settings.
func NewPolicy(inspector Inspector) *Policy {
	p := &Policy{inspector: inspector}
	defaults := DefaultSettings()
	p.settings.Store(&defaults)
	return p
}

// Settings returns the current user settings snapshot.
func (p *Policy) Settings() Settings {
	return *p.settings.Load()
}

// Apply merges a partial update into the current settings and installs the
// result. Nil arguments leave the corresponding field untouched, matching
// the partial-update semantics of the filter command.
func (p *Policy) Apply(processes, titles []string, ignoreProtected *bool) Settings {
	merged := p.Settings()
	if processes != nil {
		merged.Processes = processes
	}
	if titles != nil {
		merged.Titles = titles
	}
	if ignoreProtected != nil {
		merged.IgnoreProtected = *ignoreProtected
	}
	merged = merged.normalized()
	p.settings.Store(&merged)
	return merged
}

// Replace installs next wholesale, used when loading persisted settings.
func (p *Policy) Replace(next Settings) Settings {
	merged := next.normalized()
	p.settings.Store(&merged)
	return merged
}

// Excluded reports whether the window must not be captured. Checks run
// cheapest first; the command-line probe only fires for browser-looking
// titles. processName may be empty, in which case the inspector resolves
// it on demand. A zero handle limits the decision to title rules.
func (p *Policy) Excluded(title string, handle uintptr, processName string) bool {
	if title == "" {
		return true
	}
	for _, kw := range privacyKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	for _, sys := range systemTitles {
		if title == sys || strings.HasPrefix(title, sys) {
			return true
		}
	}

	settings := p.settings.Load()
	titleLower := strings.ToLower(title)
	for _, kw := range settings.Titles {
		if strings.Contains(titleLower, kw) {
			return true
		}
	}

	if handle == 0 {
		return false
	}

	if settings.IgnoreProtected && p.inspector.CaptureProtected(handle) {
		return true
	}

	if len(settings.Processes) > 0 {
		name := strings.ToLower(processName)
		if name == "" {
			name = p.inspector.ProcessName(handle)
		}
		if name != "" {
			for _, excluded := range settings.Processes {
				if name == excluded {
					return true
				}
			}
		}
	}

	for _, bk := range browserKeywords {
		if strings.Contains(titleLower, bk) {
			cmdline := p.inspector.CommandLine(handle)
			for _, flag := range privateBrowsingFlags {
				if strings.Contains(cmdline, flag) {
					return true
				}
			}
			break
		}
	}
	return false
}
