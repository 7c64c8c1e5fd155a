package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"glimpse/internal/capture"
	"glimpse/internal/logging"
	"glimpse/internal/recognize"
	"glimpse/internal/storagesvc"
	"glimpse/internal/store"
	"glimpse/internal/vectorindex"
)

type fakeStorage struct {
	mu        sync.Mutex
	stageErr  error
	commitErr error
	saveErr   error
	duplicate bool
	imagePath string

	stages  int
	commits int
	saves   int
	aborts  []string

	committedSpans []recognize.Span
}

func (f *fakeStorage) Stage(ctx context.Context, req storagesvc.StageRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stageErr != nil {
		return 0, f.stageErr
	}
	f.stages++
	return int64(f.stages), nil
}

func (f *fakeStorage) Commit(ctx context.Context, screenshotID int64, spans []recognize.Span) (storagesvc.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return storagesvc.SaveResult{}, f.commitErr
	}
	f.commits++
	f.committedSpans = spans
	return storagesvc.SaveResult{
		Duplicate:    f.duplicate,
		ScreenshotID: screenshotID,
		ImagePath:    f.imagePath,
	}, nil
}

func (f *fakeStorage) Abort(ctx context.Context, screenshotID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts = append(f.aborts, reason)
	return nil
}

func (f *fakeStorage) Save(ctx context.Context, req storagesvc.SaveRequest) (storagesvc.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return storagesvc.SaveResult{}, f.saveErr
	}
	f.saves++
	return storagesvc.SaveResult{
		Duplicate:    f.duplicate,
		ScreenshotID: int64(f.saves),
		ImagePath:    f.imagePath,
	}, nil
}

func (f *fakeStorage) Exists(ctx context.Context, imageHash string) (bool, error) {
	return false, nil
}

func (f *fakeStorage) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.aborts)
}

type fakeRecognizer struct {
	spans []recognize.Span
	err   error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, imageData []byte) ([]recognize.Span, error) {
	return f.spans, f.err
}

type fakeIndex struct {
	mu      sync.Mutex
	addErr  error
	entries []vectorindex.Entry
	deleted []int64
}

func (f *fakeIndex) Add(ctx context.Context, entry vectorindex.Entry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.entries = append(f.entries, entry)
	return int64(len(f.entries)), nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, limit int) ([]vectorindex.Hit, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteByScreenshotIDs(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeIndex) Close() {}

func newTestWorker(t *testing.T, storage *fakeStorage, rec *fakeRecognizer, index vectorindex.Index) (*Worker, *store.Store) {
	t.Helper()
	catalog, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	return NewWorker(storage, rec, catalog, index, 0.5, logging.NewNop()), catalog
}

func testFrame() *capture.Frame {
	return &capture.Frame{
		Data:        []byte("jpeg-bytes"),
		Title:       "Editor",
		ProcessName: "editor.exe",
		ProcessPath: `C:\apps\editor.exe`,
		Width:       800,
		Height:      600,
		CapturedAt:  time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}
}

func TestWorkerCommitsStagedFrame(t *testing.T) {
	storage := &fakeStorage{imagePath: "shots/1.enc"}
	rec := &fakeRecognizer{spans: []recognize.Span{
		{Text: "hello", Confidence: 0.9},
		{Text: "noise", Confidence: 0.2},
	}}
	index := &fakeIndex{}
	w, catalog := newTestWorker(t, storage, rec, index)

	w.processOne(context.Background(), testFrame())

	if storage.stages != 1 || storage.commits != 1 {
		t.Errorf("stages = %d, commits = %d", storage.stages, storage.commits)
	}
	if storage.abortCount() != 0 {
		t.Errorf("aborts = %v, want none", storage.aborts)
	}
	if len(storage.committedSpans) != 1 || storage.committedSpans[0].Text != "hello" {
		t.Errorf("committed spans = %v, want low-confidence span dropped", storage.committedSpans)
	}

	hash := store.ContentHash([]byte("jpeg-bytes"))
	ok, err := catalog.Exists(context.Background(), hash)
	if err != nil || !ok {
		t.Errorf("catalog.Exists(%q) = %v, %v", hash, ok, err)
	}
	if len(index.entries) != 1 {
		t.Fatalf("index entries = %d, want 1", len(index.entries))
	}
	if index.entries[0].OCRText != "hello" || index.entries[0].ImagePath != "shots/1.enc" {
		t.Errorf("index entry = %+v", index.entries[0])
	}

	stats := w.Snapshot()
	if stats.Processed != 1 || stats.Failed != 0 || stats.Duplicates != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWorkerAbortsOnceOnRecognizeFailure(t *testing.T) {
	storage := &fakeStorage{}
	rec := &fakeRecognizer{err: errors.New("ocr backend down")}
	w, catalog := newTestWorker(t, storage, rec, nil)

	w.processOne(context.Background(), testFrame())

	if got := storage.abortCount(); got != 1 {
		t.Fatalf("aborts = %d, want exactly 1", got)
	}
	if !strings.HasPrefix(storage.aborts[0], "recognition failed") {
		t.Errorf("abort reason = %q", storage.aborts[0])
	}
	if storage.commits != 0 {
		t.Errorf("commits = %d after failed recognition", storage.commits)
	}
	hash := store.ContentHash([]byte("jpeg-bytes"))
	if ok, _ := catalog.Exists(context.Background(), hash); ok {
		t.Error("failed frame was recorded in catalog")
	}
	if got := w.Snapshot().Failed; got != 1 {
		t.Errorf("failed count = %d", got)
	}
}

func TestWorkerAbortsOnceOnCommitFailure(t *testing.T) {
	storage := &fakeStorage{commitErr: errors.New("disk full")}
	rec := &fakeRecognizer{spans: []recognize.Span{{Text: "hello", Confidence: 0.9}}}
	w, _ := newTestWorker(t, storage, rec, nil)

	w.processOne(context.Background(), testFrame())

	if got := storage.abortCount(); got != 1 {
		t.Fatalf("aborts = %d, want exactly 1", got)
	}
	if !strings.HasPrefix(storage.aborts[0], "commit failed") {
		t.Errorf("abort reason = %q", storage.aborts[0])
	}
}

func TestWorkerFallsBackToSaveWhenStageFails(t *testing.T) {
	storage := &fakeStorage{stageErr: errors.New("service unavailable"), imagePath: "shots/2.enc"}
	rec := &fakeRecognizer{spans: []recognize.Span{{Text: "hello", Confidence: 0.9}}}
	w, _ := newTestWorker(t, storage, rec, nil)

	w.processOne(context.Background(), testFrame())

	if storage.saves != 1 {
		t.Errorf("saves = %d, want 1", storage.saves)
	}
	if storage.abortCount() != 0 {
		t.Errorf("aborts = %v, nothing was staged", storage.aborts)
	}
	if got := w.Snapshot().Processed; got != 1 {
		t.Errorf("processed = %d", got)
	}
}

func TestWorkerSkipsDuplicate(t *testing.T) {
	storage := &fakeStorage{duplicate: true}
	rec := &fakeRecognizer{spans: []recognize.Span{{Text: "hello", Confidence: 0.9}}}
	index := &fakeIndex{}
	w, catalog := newTestWorker(t, storage, rec, index)

	w.processOne(context.Background(), testFrame())

	stats := w.Snapshot()
	if stats.Duplicates != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	hash := store.ContentHash([]byte("jpeg-bytes"))
	if ok, _ := catalog.Exists(context.Background(), hash); ok {
		t.Error("duplicate frame was recorded in catalog")
	}
	if len(index.entries) != 0 {
		t.Errorf("duplicate frame was indexed: %+v", index.entries)
	}
}

func TestWorkerMemoryPathFallback(t *testing.T) {
	storage := &fakeStorage{}
	rec := &fakeRecognizer{spans: []recognize.Span{{Text: "hello", Confidence: 0.9}}}
	index := &fakeIndex{}
	w, catalog := newTestWorker(t, storage, rec, index)

	w.processOne(context.Background(), testFrame())

	hash := store.ContentHash([]byte("jpeg-bytes"))
	shot, err := catalog.ScreenshotByID(context.Background(), index.entries[0].ScreenshotID)
	if err != nil {
		t.Fatalf("ScreenshotByID: %v", err)
	}
	if want := "memory://" + hash; shot.ImagePath != want {
		t.Errorf("ImagePath = %q, want %q", shot.ImagePath, want)
	}
}

func TestWorkerIndexFailureDoesNotFailFrame(t *testing.T) {
	storage := &fakeStorage{}
	rec := &fakeRecognizer{spans: []recognize.Span{{Text: "hello", Confidence: 0.9}}}
	index := &fakeIndex{addErr: errors.New("pg down")}
	w, _ := newTestWorker(t, storage, rec, index)

	w.processOne(context.Background(), testFrame())

	stats := w.Snapshot()
	if stats.Processed != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWorkerPendingCountsQueueAndInFlight(t *testing.T) {
	storage := &fakeStorage{}
	rec := &fakeRecognizer{}
	w, _ := newTestWorker(t, storage, rec, nil)

	w.Enqueue(testFrame())
	w.Enqueue(testFrame())
	if got := w.Pending(); got != 2 {
		t.Errorf("Pending = %d, want 2", got)
	}
}

func TestWorkerPauseHaltsDequeue(t *testing.T) {
	storage := &fakeStorage{}
	rec := &fakeRecognizer{spans: []recognize.Span{{Text: "hello", Confidence: 0.9}}}
	w, _ := newTestWorker(t, storage, rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	w.Pause()
	go func() { done <- w.Run(ctx) }()

	w.Enqueue(testFrame())
	w.Enqueue(testFrame())
	time.Sleep(50 * time.Millisecond)

	stats := w.Snapshot()
	if stats.Processed != 0 || stats.Failed != 0 {
		t.Fatalf("paused worker drained the queue: %+v", stats)
	}
	if stats.Pending != 2 {
		t.Errorf("Pending while paused = %d, want 2", stats.Pending)
	}

	w.Resume()
	deadline := time.After(2 * time.Second)
	for w.Snapshot().Processed != 2 {
		select {
		case <-deadline:
			t.Fatalf("worker never caught up after resume: %+v", w.Snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	storage := &fakeStorage{}
	rec := &fakeRecognizer{spans: []recognize.Span{{Text: "hello", Confidence: 0.9}}}
	w, _ := newTestWorker(t, storage, rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	w.Enqueue(testFrame())
	deadline := time.After(2 * time.Second)
	for w.Snapshot().Processed == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never processed the frame")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{512, "512.0B"},
		{2048, "2.0KB"},
		{5 * 1024 * 1024, "5.0MB"},
	}
	for _, tc := range cases {
		if got := humanBytes(tc.in); got != tc.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
