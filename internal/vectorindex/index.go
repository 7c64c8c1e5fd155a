package vectorindex

import (
	"context"
	"time"
)

// Entry is one frame to index.
type Entry struct {
	ScreenshotID int64
	ImagePath    string
	WindowTitle  string
	ProcessName  string
	OCRText      string
	TextCount    int
	Width        int
	Height       int
	CreatedAt    time.Time
}

// Hit is one semantic search result, already decrypted.
type Hit struct {
	ID           int64   `json:"id"`
	ScreenshotID int64   `json:"screenshot_id"`
	ImagePath    string  `json:"image_path"`
	WindowTitle  string  `json:"window_title"`
	ProcessName  string  `json:"process_name"`
	CreatedAt    string  `json:"created_at"`
	Score        float64 `json:"score"`
}

// Encoder turns text into the embedding vectors the index stores. The
// embedding dimension must be stable for the lifetime of a collection.
type Encoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
}

// Index is the semantic index surface the pipeline and command channel use.
type Index interface {
	// Add indexes one frame and returns the row id.
	Add(ctx context.Context, entry Entry) (int64, error)
	// Search returns the closest entries for a natural language query,
	// best first.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	// DeleteByScreenshotIDs removes entries tied to deleted screenshots.
	DeleteByScreenshotIDs(ctx context.Context, ids []int64) error
	// Close releases the underlying connections.
	Close()
}
