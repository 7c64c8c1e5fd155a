package main

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"glimpse/internal/capture"
	"glimpse/internal/logging"
)

// Desktop integration is inherently platform specific and ships as
// separate backends selected by build tags. The portable fallback below
// reports no active window, which leaves the capture loop idle while the
// control channel, catalog, and search surfaces keep working. Useful for
// headless operation and for querying an existing catalog.

var errNoCaptureBackend = errors.New("no desktop capture backend in this build")

type fallbackInspector struct{}

func (fallbackInspector) ActiveWindow() (capture.Window, error) {
	return capture.Window{}, errNoCaptureBackend
}

func (fallbackInspector) ProcessName(uintptr) string    { return "" }
func (fallbackInspector) ProcessPath(uintptr) string    { return "" }
func (fallbackInspector) CommandLine(uintptr) string    { return "" }
func (fallbackInspector) CaptureProtected(uintptr) bool { return false }

type fallbackGrabber struct{}

func (fallbackGrabber) Grab(context.Context, image.Rectangle) (image.Image, error) {
	return nil, errNoCaptureBackend
}

func newPlatformInspector(logger *slog.Logger) capture.Inspector {
	if logger != nil {
		logger.Warn("running without a desktop capture backend",
			logging.String(logging.FieldErrorHint, "install a platform build to record new frames"))
	}
	return fallbackInspector{}
}

func newPlatformGrabber() capture.Grabber {
	return fallbackGrabber{}
}

func newPlatformIconSource() capture.IconSource {
	return nil
}
