package testsupport

import (
	"context"
	"testing"

	"glimpse/internal/config"
	"glimpse/internal/store"
)

// MustOpenStore opens the catalog for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	catalog, err := store.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		catalog.Close()
	})
	return catalog
}

// AddScreenshot inserts a screenshot with the given recognized texts and
// returns its id.
func AddScreenshot(t testing.TB, catalog *store.Store, ns store.NewScreenshot, texts ...string) int64 {
	t.Helper()

	results := make([]store.OCRResult, len(texts))
	for i, text := range texts {
		results[i] = store.OCRResult{
			Text:       text,
			Confidence: 0.9,
			Box:        [4][2]float64{{float64(i * 50), float64(i * 50)}, {}, {}, {}},
		}
	}
	outcome, err := catalog.SaveOCRData(context.Background(), ns, results)
	if err != nil {
		t.Fatalf("SaveOCRData: %v", err)
	}
	return outcome.ScreenshotID
}
