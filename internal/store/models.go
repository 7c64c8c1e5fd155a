package store

import "glimpse/internal/recognize"

// Screenshot is one captured frame's catalog row. CreatedAt is UTC
// "YYYY-MM-DD HH:MM:SS" text; Metadata is the raw JSON blob recorded at
// capture time.
type Screenshot struct {
	ID          int64  `json:"id"`
	ImagePath   string `json:"image_path"`
	ImageHash   string `json:"image_hash"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	WindowTitle string `json:"window_title"`
	ProcessName string `json:"process_name"`
	CreatedAt   string `json:"created_at"`
	Metadata    string `json:"metadata,omitempty"`
}

// OCRResult is one recognized span attached to a screenshot.
type OCRResult struct {
	ID         int64         `json:"id"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Box        [4][2]float64 `json:"box"`
}

// SearchHit is one row of a text search: the span plus its screenshot
// context and, for fuzzy queries, the relevance score it was ranked by.
type SearchHit struct {
	ID                  int64         `json:"id"`
	ScreenshotID        int64         `json:"screenshot_id"`
	Text                string        `json:"text"`
	Confidence          float64       `json:"confidence"`
	Box                 [4][2]float64 `json:"box"`
	ImagePath           string        `json:"image_path"`
	WindowTitle         string        `json:"window_title"`
	ProcessName         string        `json:"process_name"`
	CreatedAt           string        `json:"created_at"`
	ScreenshotCreatedAt string        `json:"screenshot_created_at"`
	Relevance           float64       `json:"relevance,omitempty"`
}

// SearchOptions narrows and pages a text search. StartTime and EndTime
// are unix seconds; nil means unbounded.
type SearchOptions struct {
	Query        string
	Limit        int
	Offset       int
	Fuzzy        bool
	ProcessNames []string
	StartTime    *float64
	EndTime      *float64
}

// TimelineEntry is a screenshot row shaped for timeline rendering, with
// the creation time as unix seconds.
type TimelineEntry struct {
	ID          int64  `json:"id"`
	ImagePath   string `json:"image_path"`
	WindowTitle string `json:"window_title"`
	ProcessName string `json:"process_name"`
	Timestamp   int64  `json:"timestamp"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Metadata    string `json:"metadata,omitempty"`
}

// RecentScreenshot is a screenshot row with its attached span count.
type RecentScreenshot struct {
	ID          int64  `json:"id"`
	ImagePath   string `json:"image_path"`
	WindowTitle string `json:"window_title"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	TextCount   int    `json:"text_count"`
	CreatedAt   string `json:"created_at"`
}

// ProcessCount pairs a process name with its screenshot count.
type ProcessCount struct {
	ProcessName string `json:"process_name"`
	Count       int    `json:"count"`
}

// TextCount pairs an indexed text with its occurrence count.
type TextCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Statistics summarizes catalog contents.
type Statistics struct {
	ScreenshotCount int64       `json:"screenshot_count"`
	OCRResultCount  int64       `json:"ocr_result_count"`
	UniqueTextCount int64       `json:"unique_text_count"`
	FrequentTexts   []TextCount `json:"frequent_texts"`
}

// SaveOutcome reports what SaveOCRData did.
type SaveOutcome struct {
	Status       string `json:"status"`
	ScreenshotID int64  `json:"screenshot_id"`
	Added        int    `json:"added"`
	Skipped      int    `json:"skipped"`
}

// StatusDuplicate marks a save that was skipped because the content hash
// already exists.
const StatusDuplicate = "duplicate"

// StatusSuccess marks a completed save.
const StatusSuccess = "success"

// NewScreenshot carries the fields of a screenshot insert.
type NewScreenshot struct {
	ImagePath   string
	ImageHash   string
	Width       int
	Height      int
	WindowTitle string
	ProcessName string
	Metadata    string
}

// ResultsFromSpans converts recognizer spans to storable results.
func ResultsFromSpans(spans []recognize.Span) []OCRResult {
	out := make([]OCRResult, len(spans))
	for i, span := range spans {
		out[i] = OCRResult{Text: span.Text, Confidence: span.Confidence, Box: span.Box}
	}
	return out
}
