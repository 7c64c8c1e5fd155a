package vectorindex

import (
	"strings"
	"testing"
)

func TestEmbeddingTextBoundsExcerpt(t *testing.T) {
	entry := Entry{
		WindowTitle: "Notes",
		ProcessName: "editor.exe",
		OCRText:     strings.Repeat("x", ocrExcerptLimit+500),
	}
	text := embeddingText(entry)
	if !strings.HasPrefix(text, "Notes editor.exe ") {
		t.Errorf("embedding text prefix = %q", text[:30])
	}
	if len(text) > ocrExcerptLimit+len("Notes editor.exe ") {
		t.Errorf("embedding text not bounded: %d", len(text))
	}
}

func TestEmbeddingTextEmpty(t *testing.T) {
	if got := embeddingText(Entry{}); got != "  " {
		t.Errorf("embeddingText(zero) = %q", got)
	}
}
