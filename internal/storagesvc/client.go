package storagesvc

import (
	"context"

	"glimpse/internal/recognize"
)

// StageRequest carries a frame into the pending area of the storage
// service. Metadata is free-form and stored alongside the image.
type StageRequest struct {
	ImageData   []byte
	ImageHash   string
	Width       int
	Height      int
	WindowTitle string
	ProcessName string
	Metadata    map[string]any
}

// SaveRequest is the single-shot variant: frame plus recognized spans in
// one call.
type SaveRequest struct {
	StageRequest
	Spans []recognize.Span
}

// SaveResult reports the outcome of a commit or save.
type SaveResult struct {
	// Duplicate is set when the service already holds an image with the
	// same content hash and skipped the write.
	Duplicate bool
	// ScreenshotID is the service-side identifier, when one was assigned.
	ScreenshotID int64
	// ImagePath is the service-side path of the stored image.
	ImagePath string
}

// Client is the storage service surface the pipeline depends on.
type Client interface {
	// Stage persists the frame as pending and returns its identifier.
	Stage(ctx context.Context, req StageRequest) (int64, error)
	// Commit finalizes a staged frame and attaches its text spans.
	Commit(ctx context.Context, screenshotID int64, spans []recognize.Span) (SaveResult, error)
	// Abort discards a staged frame. It must be called exactly once for
	// every staged frame that is not committed.
	Abort(ctx context.Context, screenshotID int64, reason string) error
	// Save persists a frame and its spans in one call.
	Save(ctx context.Context, req SaveRequest) (SaveResult, error)
	// Exists reports whether the service already holds the content hash.
	Exists(ctx context.Context, imageHash string) (bool, error)
}

// Encryptor encrypts and decrypts index text through the storage service,
// which owns the key material.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, encrypted string) (string, error)
}
