package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testBase = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

func setClock(s *Store, at time.Time) {
	s.now = func() time.Time { return at }
}

func addShot(t *testing.T, s *Store, hash string, at time.Time, ns NewScreenshot) int64 {
	t.Helper()
	setClock(s, at)
	ns.ImageHash = hash
	if ns.ImagePath == "" {
		ns.ImagePath = "shots/" + hash + ".jpg"
	}
	id, inserted, err := s.AddScreenshot(context.Background(), ns)
	if err != nil {
		t.Fatalf("AddScreenshot(%s): %v", hash, err)
	}
	if !inserted {
		t.Fatalf("AddScreenshot(%s): unexpected duplicate", hash)
	}
	return id
}

func TestAddScreenshotDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := addShot(t, s, "hash-a", testBase, NewScreenshot{WindowTitle: "Editor", Width: 320, Height: 240})

	dupID, inserted, err := s.AddScreenshot(ctx, NewScreenshot{ImagePath: "other.jpg", ImageHash: "hash-a"})
	if err != nil {
		t.Fatalf("AddScreenshot dup: %v", err)
	}
	if inserted {
		t.Error("duplicate hash should not insert")
	}
	if dupID != id {
		t.Errorf("duplicate id = %d, want %d", dupID, id)
	}

	exists, err := s.Exists(ctx, "hash-a")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v", exists, err)
	}
	if exists, _ := s.Exists(ctx, "hash-b"); exists {
		t.Error("unknown hash should not exist")
	}
}

func TestScreenshotLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := addShot(t, s, "hash-a", testBase, NewScreenshot{
		ImagePath:   `C:\data\shots\20260825_100000.jpg`,
		WindowTitle: "Editor",
		ProcessName: "editor.exe",
		Width:       320,
		Height:      240,
		Metadata:    `{"dhash":"ff"}`,
	})

	shot, err := s.ScreenshotByID(ctx, id)
	if err != nil {
		t.Fatalf("ScreenshotByID: %v", err)
	}
	if shot.WindowTitle != "Editor" || shot.ProcessName != "editor.exe" || shot.Width != 320 {
		t.Errorf("shot = %+v", shot)
	}
	if shot.Metadata != `{"dhash":"ff"}` {
		t.Errorf("metadata = %q", shot.Metadata)
	}

	if _, err := s.ScreenshotByID(ctx, 9999); err != ErrNotFound {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}

	// Forward slashes resolve the backslash-recorded path.
	byPath, err := s.ScreenshotByPath(ctx, "C:/data/shots/20260825_100000.jpg")
	if err != nil {
		t.Fatalf("ScreenshotByPath: %v", err)
	}
	if byPath.ID != id {
		t.Errorf("byPath.ID = %d, want %d", byPath.ID, id)
	}

	// Base name fallback.
	byBase, err := s.ScreenshotByPath(ctx, "elsewhere/20260825_100000.jpg")
	if err != nil {
		t.Fatalf("ScreenshotByPath base: %v", err)
	}
	if byBase.ID != id {
		t.Errorf("byBase.ID = %d, want %d", byBase.ID, id)
	}

	if _, err := s.ScreenshotByPath(ctx, "nope.jpg"); err != ErrNotFound {
		t.Errorf("missing path error = %v, want ErrNotFound", err)
	}
}

func TestSaveOCRData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	setClock(s, testBase)

	results := []OCRResult{
		{Text: "hello", Confidence: 0.9, Box: [4][2]float64{{10, 10}, {100, 10}, {100, 30}, {10, 30}}},
		{Text: "world", Confidence: 0.8, Box: [4][2]float64{{10, 50}, {100, 50}, {100, 70}, {10, 70}}},
	}
	outcome, err := s.SaveOCRData(ctx, NewScreenshot{ImagePath: "a.jpg", ImageHash: "hash-a"}, results)
	if err != nil {
		t.Fatalf("SaveOCRData: %v", err)
	}
	if outcome.Status != StatusSuccess || outcome.Added != 2 || outcome.Skipped != 0 {
		t.Errorf("outcome = %+v", outcome)
	}

	dup, err := s.SaveOCRData(ctx, NewScreenshot{ImagePath: "b.jpg", ImageHash: "hash-a"}, results)
	if err != nil {
		t.Fatalf("SaveOCRData dup: %v", err)
	}
	if dup.Status != StatusDuplicate || dup.ScreenshotID != outcome.ScreenshotID || dup.Skipped != 2 {
		t.Errorf("dup outcome = %+v", dup)
	}

	spans, err := s.OCRResultsByScreenshot(ctx, outcome.ScreenshotID)
	if err != nil {
		t.Fatalf("OCRResultsByScreenshot: %v", err)
	}
	if len(spans) != 2 || spans[0].Text != "hello" || spans[1].Text != "world" {
		t.Errorf("spans = %+v", spans)
	}
}

func TestAddOCRResultsSkipsNearDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := addShot(t, s, "hash-a", testBase, NewScreenshot{})

	span := OCRResult{Text: "repeated", Confidence: 0.9, Box: [4][2]float64{{10, 10}, {50, 10}, {50, 20}, {10, 20}}}
	if _, _, err := s.AddOCRResults(ctx, id, []OCRResult{span}); err != nil {
		t.Fatal(err)
	}

	// Same text within 10px is a duplicate; far away is not.
	near := span
	near.Box[0] = [2]float64{15, 15}
	far := span
	far.Box[0] = [2]float64{200, 200}
	added, skipped, err := s.AddOCRResults(ctx, id, []OCRResult{near, far})
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 || skipped != 1 {
		t.Errorf("added=%d skipped=%d, want 1/1", added, skipped)
	}
}

func TestTimeline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	early := addShot(t, s, "hash-a", testBase, NewScreenshot{WindowTitle: "First"})
	late := addShot(t, s, "hash-b", testBase.Add(2*time.Hour), NewScreenshot{WindowTitle: "Second"})
	addShot(t, s, "hash-c", testBase.Add(24*time.Hour), NewScreenshot{WindowTitle: "Outside"})

	entries, err := s.Timeline(ctx, float64(testBase.Add(-time.Hour).Unix()), float64(testBase.Add(3*time.Hour).Unix()))
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID != early || entries[1].ID != late {
		t.Errorf("order = %d,%d want %d,%d", entries[0].ID, entries[1].ID, early, late)
	}
	if entries[0].Timestamp != testBase.Unix() {
		t.Errorf("timestamp = %d, want %d", entries[0].Timestamp, testBase.Unix())
	}
}

func TestRecentScreenshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := addShot(t, s, "hash-a", testBase, NewScreenshot{})
	recent := addShot(t, s, "hash-b", testBase.Add(time.Hour), NewScreenshot{})
	if _, _, err := s.AddOCRResults(ctx, recent, []OCRResult{
		{Text: "a", Box: [4][2]float64{{1, 1}, {2, 1}, {2, 2}, {1, 2}}},
		{Text: "b", Box: [4][2]float64{{1, 30}, {2, 30}, {2, 40}, {1, 40}}},
	}); err != nil {
		t.Fatal(err)
	}

	shots, err := s.RecentScreenshots(ctx, 10)
	if err != nil {
		t.Fatalf("RecentScreenshots: %v", err)
	}
	if len(shots) != 2 || shots[0].ID != recent || shots[1].ID != old {
		t.Fatalf("shots = %+v", shots)
	}
	if shots[0].TextCount != 2 || shots[1].TextCount != 0 {
		t.Errorf("text counts = %d,%d", shots[0].TextCount, shots[1].TextCount)
	}
}

func TestListProcesses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addShot(t, s, "h1", testBase, NewScreenshot{ProcessName: "editor.exe"})
	addShot(t, s, "h2", testBase, NewScreenshot{ProcessName: "editor.exe"})
	addShot(t, s, "h3", testBase, NewScreenshot{ProcessName: "browser.exe"})
	addShot(t, s, "h4", testBase, NewScreenshot{ProcessName: "  "})

	counts, err := s.ListProcesses(ctx, 0)
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("counts = %+v", counts)
	}
	if counts[0].ProcessName != "editor.exe" || counts[0].Count != 2 {
		t.Errorf("first = %+v", counts[0])
	}
	if counts[1].ProcessName != "browser.exe" {
		t.Errorf("second = %+v", counts[1])
	}

	limited, err := s.ListProcesses(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %+v", limited)
	}
}

func TestDeleteScreenshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := addShot(t, s, "hash-a", testBase, NewScreenshot{ImagePath: "shots/a.jpg"})
	if _, _, err := s.AddOCRResults(ctx, id, []OCRResult{{Text: "x", Box: [4][2]float64{{1, 1}, {2, 1}, {2, 2}, {1, 2}}}}); err != nil {
		t.Fatal(err)
	}

	path, deleted, err := s.DeleteScreenshot(ctx, id)
	if err != nil {
		t.Fatalf("DeleteScreenshot: %v", err)
	}
	if !deleted || path != "shots/a.jpg" {
		t.Errorf("deleted=%v path=%q", deleted, path)
	}

	// Cascade removed the spans.
	spans, err := s.OCRResultsByScreenshot(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) != 0 {
		t.Errorf("spans survived cascade: %+v", spans)
	}

	if _, deleted, _ := s.DeleteScreenshot(ctx, id); deleted {
		t.Error("second delete should report false")
	}
}

func TestDeleteByTimeRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addShot(t, s, "hash-a", testBase, NewScreenshot{ImagePath: "a.jpg"})
	addShot(t, s, "hash-b", testBase.Add(time.Hour), NewScreenshot{ImagePath: "b.jpg"})
	keep := addShot(t, s, "hash-c", testBase.Add(48*time.Hour), NewScreenshot{ImagePath: "c.jpg"})

	startMs := float64(testBase.Add(-time.Minute).UnixMilli())
	endMs := float64(testBase.Add(2 * time.Hour).UnixMilli())
	count, paths, err := s.DeleteByTimeRange(ctx, startMs, endMs)
	if err != nil {
		t.Fatalf("DeleteByTimeRange: %v", err)
	}
	if count != 2 || len(paths) != 2 {
		t.Errorf("count=%d paths=%v", count, paths)
	}
	if _, err := s.ScreenshotByID(ctx, keep); err != nil {
		t.Errorf("out-of-range screenshot should survive: %v", err)
	}
}

func TestCleanupOldData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := addShot(t, s, "hash-a", time.Now().UTC().Add(-40*24*time.Hour), NewScreenshot{})
	if _, _, err := s.AddOCRResults(ctx, old, []OCRResult{{Text: "stale", Box: [4][2]float64{{1, 1}, {2, 1}, {2, 2}, {1, 2}}}}); err != nil {
		t.Fatal(err)
	}
	fresh := addShot(t, s, "hash-b", time.Now().UTC(), NewScreenshot{})
	if _, _, err := s.AddOCRResults(ctx, fresh, []OCRResult{{Text: "live", Box: [4][2]float64{{1, 1}, {2, 1}, {2, 2}, {1, 2}}}}); err != nil {
		t.Fatal(err)
	}

	shots, indices, err := s.CleanupOldData(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupOldData: %v", err)
	}
	if shots != 1 {
		t.Errorf("deleted screenshots = %d, want 1", shots)
	}
	if indices != 1 {
		t.Errorf("deleted indices = %d, want 1", indices)
	}
	if _, err := s.ScreenshotByID(ctx, fresh); err != nil {
		t.Errorf("fresh screenshot should survive: %v", err)
	}
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := addShot(t, s, "hash-a", testBase, NewScreenshot{})
	other := addShot(t, s, "hash-b", testBase, NewScreenshot{})
	box := func(y float64) [4][2]float64 { return [4][2]float64{{1, y}, {2, y}, {2, y + 5}, {1, y + 5}} }
	if _, _, err := s.AddOCRResults(ctx, id, []OCRResult{{Text: "common", Box: box(1)}, {Text: "rare", Box: box(30)}}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.AddOCRResults(ctx, other, []OCRResult{{Text: "common", Box: box(1)}}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.ScreenshotCount != 2 || stats.OCRResultCount != 3 || stats.UniqueTextCount != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.FrequentTexts) == 0 || stats.FrequentTexts[0].Text != "common" || stats.FrequentTexts[0].Count != 2 {
		t.Errorf("frequent = %+v", stats.FrequentTexts)
	}
}

func TestContentHash(t *testing.T) {
	// MD5 of "hello" is a fixed reference value.
	if got := ContentHash([]byte("hello")); got != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("ContentHash = %q", got)
	}
}
