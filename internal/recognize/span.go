package recognize

import "strings"

// Span is one recognized text region. Box holds the four corner points of
// the region's quadrilateral in image coordinates, clockwise from top-left.
type Span struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Box        [4][2]float64 `json:"box"`
}

// FilterConfidence returns the spans meeting the confidence threshold,
// preserving order.
func FilterConfidence(spans []Span, threshold float64) []Span {
	out := make([]Span, 0, len(spans))
	for _, span := range spans {
		if span.Confidence >= threshold {
			out = append(out, span)
		}
	}
	return out
}

// JoinText concatenates span texts with single spaces, the form indexed
// for search.
func JoinText(spans []Span) string {
	parts := make([]string, 0, len(spans))
	for _, span := range spans {
		parts = append(parts, span.Text)
	}
	return strings.Join(parts, " ")
}
