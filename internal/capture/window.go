package capture

import (
	"context"
	"image"
)

// Window identifies the currently focused window.
type Window struct {
	Handle uintptr
	Title  string
	Rect   image.Rectangle
}

// Inspector exposes the platform window and process introspection the
// scheduler consumes. Every method is best-effort; implementations return
// zero values rather than blocking when information is unavailable.
type Inspector interface {
	// ActiveWindow returns the focused window's handle, title, and bounds.
	ActiveWindow() (Window, error)
	// ProcessName returns the lower-cased executable name owning the window.
	ProcessName(handle uintptr) string
	// ProcessPath returns the full executable path owning the window.
	ProcessPath(handle uintptr) string
	// CommandLine returns the lower-cased command line of the owning process.
	// This is an expensive out-of-process query; callers must invoke it only
	// when cheaper checks did not already decide.
	CommandLine(handle uintptr) string
	// CaptureProtected reports whether the window carries a non-zero display
	// affinity, i.e. the OS forbids capturing it.
	CaptureProtected(handle uintptr) bool
}

// Grabber captures the pixels of a screen region.
type Grabber interface {
	Grab(ctx context.Context, rect image.Rectangle) (image.Image, error)
}

// Geometry records the captured monitor region in screen coordinates.
type Geometry struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
