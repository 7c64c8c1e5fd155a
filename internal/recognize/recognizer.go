package recognize

import (
	"context"
	"sync"
)

// Recognizer extracts text spans from an encoded JPEG image.
type Recognizer interface {
	Recognize(ctx context.Context, imageData []byte) ([]Span, error)
}

// Serialized wraps a recognizer that cannot handle concurrent requests,
// admitting one call at a time.
type Serialized struct {
	mu    sync.Mutex
	inner Recognizer
}

// NewSerialized wraps inner with a request mutex.
func NewSerialized(inner Recognizer) *Serialized {
	return &Serialized{inner: inner}
}

// Recognize forwards to the wrapped recognizer under the mutex.
func (s *Serialized) Recognize(ctx context.Context, imageData []byte) ([]Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Recognize(ctx, imageData)
}
