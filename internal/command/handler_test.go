package command

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"glimpse/internal/capture"
	"glimpse/internal/pipeline"
	"glimpse/internal/store"
	"glimpse/internal/vectorindex"
)

type fakeController struct {
	mu          sync.Mutex
	paused      bool
	stopped     bool
	pauseCalls  int
	resumeCalls int
	stopCalls   int
}

func (f *fakeController) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.pauseCalls++
}

func (f *fakeController) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	f.resumeCalls++
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.stopCalls++
}

func (f *fakeController) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeController) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeStats struct{}

func (fakeStats) Snapshot() pipeline.Stats {
	return pipeline.Stats{Processed: 7, Pending: 2}
}

type fakeSearchIndex struct {
	mu         sync.Mutex
	hits       []vectorindex.Hit
	lastQuery  string
	lastLimit  int
	deleted    []int64
	failDelete map[int64]bool
}

func (f *fakeSearchIndex) Add(ctx context.Context, entry vectorindex.Entry) (int64, error) {
	return 0, nil
}

func (f *fakeSearchIndex) Search(ctx context.Context, query string, limit int) ([]vectorindex.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	f.lastLimit = limit
	return f.hits, nil
}

func (f *fakeSearchIndex) DeleteByScreenshotIDs(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if f.failDelete[id] {
			return fmt.Errorf("delete %d failed", id)
		}
		f.deleted = append(f.deleted, id)
	}
	return nil
}

func (f *fakeSearchIndex) Close() {}

type testHarness struct {
	handler    *Handler
	controller *fakeController
	catalog    *store.Store
	index      *fakeSearchIndex
	dir        string
}

func newTestHarness(t *testing.T, index *fakeSearchIndex) *testHarness {
	t.Helper()
	dir := t.TempDir()
	catalog, err := store.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	controller := &fakeController{}
	cfg := HandlerConfig{
		Auth:          NewAuthSession("token"),
		Controller:    controller,
		Stats:         fakeStats{},
		Policy:        capture.NewPolicy(nil),
		Settings:      capture.NewSettingsStore(filepath.Join(dir, "monitor_filters.json")),
		Catalog:       catalog,
		ScreenshotDir: dir,
		Interval:      10 * time.Second,
	}
	if index != nil {
		cfg.Index = index
	}
	return &testHarness{
		handler:    NewHandler(cfg),
		controller: controller,
		catalog:    catalog,
		index:      index,
		dir:        dir,
	}
}

func (h *testHarness) call(t *testing.T, body string) map[string]any {
	t.Helper()
	resp := h.handler.Handle(context.Background(), []byte(body))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return out
}

func (h *testHarness) addScreenshot(t *testing.T, ns store.NewScreenshot, texts ...string) int64 {
	t.Helper()
	results := make([]store.OCRResult, len(texts))
	for i, text := range texts {
		results[i] = store.OCRResult{
			Text:       text,
			Confidence: 0.9,
			Box:        [4][2]float64{{float64(i * 100), float64(i * 100)}, {}, {}, {}},
		}
	}
	outcome, err := h.catalog.SaveOCRData(context.Background(), ns, results)
	if err != nil {
		t.Fatalf("SaveOCRData: %v", err)
	}
	return outcome.ScreenshotID
}

func TestHandlerLifecycleCommands(t *testing.T) {
	h := newTestHarness(t, nil)

	resp := h.call(t, `{"command":"pause","_auth_token":"token"}`)
	if resp["status"] != "paused" {
		t.Errorf("pause = %v", resp)
	}
	resp = h.call(t, `{"command":"continue","_auth_token":"token"}`)
	if resp["status"] != "resumed" {
		t.Errorf("continue = %v", resp)
	}
	resp = h.call(t, `{"command":"STOP","_auth_token":"token"}`)
	if resp["status"] != "stopped" {
		t.Errorf("stop = %v", resp)
	}
	if h.controller.pauseCalls != 1 || h.controller.resumeCalls != 1 || h.controller.stopCalls != 1 {
		t.Errorf("controller calls = %+v", h.controller)
	}
}

func TestHandlerRejectsBadTokenWithoutExecuting(t *testing.T) {
	h := newTestHarness(t, nil)

	resp := h.call(t, `{"command":"pause","_auth_token":"nope"}`)
	msg, _ := resp["error"].(string)
	if !strings.Contains(msg, "authentication failed") {
		t.Errorf("error = %q", msg)
	}
	if h.controller.pauseCalls != 0 {
		t.Error("rejected request still executed")
	}
}

func TestHandlerRejectsReplayedSequence(t *testing.T) {
	h := newTestHarness(t, nil)

	resp := h.call(t, `{"command":"pause","_auth_token":"token","_seq_no":5}`)
	if resp["status"] != "paused" {
		t.Fatalf("first request = %v", resp)
	}
	resp = h.call(t, `{"command":"pause","_auth_token":"token","_seq_no":5}`)
	if _, ok := resp["error"]; !ok {
		t.Errorf("replayed request accepted: %v", resp)
	}
	if h.controller.pauseCalls != 1 {
		t.Errorf("pauseCalls = %d, want 1", h.controller.pauseCalls)
	}
}

func TestHandlerUnknownCommand(t *testing.T) {
	h := newTestHarness(t, nil)
	resp := h.call(t, `{"command":"reboot","_auth_token":"token"}`)
	if resp["error"] != "unknown command" {
		t.Errorf("response = %v", resp)
	}
}

func TestHandlerStatus(t *testing.T) {
	h := newTestHarness(t, nil)
	h.controller.Pause()

	resp := h.call(t, `{"command":"status","_auth_token":"token"}`)
	if resp["paused"] != true {
		t.Errorf("paused = %v", resp["paused"])
	}
	if resp["interval"] != float64(10) {
		t.Errorf("interval = %v", resp["interval"])
	}
	stats, _ := resp["ocr_stats"].(map[string]any)
	if stats["processed_count"] != float64(7) {
		t.Errorf("ocr_stats = %v", stats)
	}
}

func TestHandlerUpdateFiltersPartial(t *testing.T) {
	h := newTestHarness(t, nil)

	resp := h.call(t, `{"command":"update_filters","_auth_token":"token","filters":{"titles":["Bank"]}}`)
	if resp["status"] != "success" {
		t.Fatalf("update_filters = %v", resp)
	}
	filters, _ := resp["filters"].(map[string]any)
	titles, _ := filters["titles"].([]any)
	if len(titles) != 1 || titles[0] != "bank" {
		t.Errorf("titles = %v", titles)
	}
	if filters["ignore_protected"] != true {
		t.Errorf("ignore_protected changed by partial update: %v", filters)
	}

	if _, err := os.Stat(filepath.Join(h.dir, "monitor_filters.json")); err != nil {
		t.Errorf("filters not persisted: %v", err)
	}
}

func TestHandlerSearch(t *testing.T) {
	h := newTestHarness(t, nil)
	h.addScreenshot(t, store.NewScreenshot{ImagePath: "a.jpg", ImageHash: "hash-a", ProcessName: "editor.exe"}, "hello world", "other")
	h.addScreenshot(t, store.NewScreenshot{ImagePath: "b.jpg", ImageHash: "hash-b", ProcessName: "term.exe"}, "unrelated")

	resp := h.call(t, `{"command":"search","_auth_token":"token","query":"hello"}`)
	if resp["status"] != "success" {
		t.Fatalf("search = %v", resp)
	}
	results, _ := resp["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	first, _ := results[0].(map[string]any)
	if first["text"] != "hello world" {
		t.Errorf("first hit = %v", first)
	}
}

func TestHandlerSemanticSearchOverfetchAndFilter(t *testing.T) {
	index := &fakeSearchIndex{hits: []vectorindex.Hit{
		{ScreenshotID: 1, ProcessName: "editor.exe", CreatedAt: "2026-08-25 10:00:00", Score: 0.9},
		{ScreenshotID: 2, ProcessName: "term.exe", CreatedAt: "2026-08-25 10:00:00", Score: 0.8},
		{ScreenshotID: 3, ProcessName: "editor.exe", CreatedAt: "2026-08-20 10:00:00", Score: 0.7},
	}}
	h := newTestHarness(t, index)

	start := float64(time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC).Unix())
	body := fmt.Sprintf(`{"command":"search_nl","_auth_token":"token","query":"notes","process_names":["editor.exe"],"start_time":%.0f}`, start)
	resp := h.call(t, body)
	if resp["status"] != "success" {
		t.Fatalf("search_nl = %v", resp)
	}
	results, _ := resp["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	first, _ := results[0].(map[string]any)
	if first["screenshot_id"] != float64(1) {
		t.Errorf("first hit = %v", first)
	}

	// limit 10, offset 0: fetch max(20, 30) = 30 neighbors to survive the
	// post-filter.
	if index.lastLimit != 30 {
		t.Errorf("fetch count = %d, want 30", index.lastLimit)
	}
}

func TestHandlerSemanticSearchHonorsOverfetchSetting(t *testing.T) {
	index := &fakeSearchIndex{}
	handler := NewHandler(HandlerConfig{
		Auth:      NewAuthSession(""),
		Index:     index,
		Overfetch: 5,
	})

	resp := handler.Handle(context.Background(), []byte(`{"command":"search_nl","query":"notes","limit":10}`))
	if _, ok := resp.(semanticSearchResponse); !ok {
		t.Fatalf("search_nl = %#v", resp)
	}
	// limit 10 at multiplier 5 beats the +20 floor.
	if index.lastLimit != 50 {
		t.Errorf("fetch count = %d, want 50", index.lastLimit)
	}
}

func TestHandlerSemanticSearchWithoutIndex(t *testing.T) {
	h := newTestHarness(t, nil)
	resp := h.call(t, `{"command":"search_nl","_auth_token":"token","query":"notes"}`)
	if _, ok := resp["error"]; !ok {
		t.Errorf("search_nl without index = %v", resp)
	}
}

func TestHandlerListProcesses(t *testing.T) {
	h := newTestHarness(t, nil)
	h.addScreenshot(t, store.NewScreenshot{ImagePath: "a.jpg", ImageHash: "hash-a", ProcessName: "editor.exe"}, "x")
	h.addScreenshot(t, store.NewScreenshot{ImagePath: "b.jpg", ImageHash: "hash-b", ProcessName: "editor.exe"}, "y")

	resp := h.call(t, `{"command":"list_processes","_auth_token":"token"}`)
	processes, _ := resp["processes"].([]any)
	if len(processes) != 1 {
		t.Fatalf("processes = %v", processes)
	}
	first, _ := processes[0].(map[string]any)
	if first["process_name"] != "editor.exe" || first["count"] != float64(2) {
		t.Errorf("process entry = %v", first)
	}
}

func TestHandlerGetImage(t *testing.T) {
	h := newTestHarness(t, nil)
	imagePath := filepath.Join(h.dir, "shot.png")
	if err := os.WriteFile(imagePath, []byte("png-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	id := h.addScreenshot(t, store.NewScreenshot{ImagePath: imagePath, ImageHash: "hash-img"})

	resp := h.call(t, fmt.Sprintf(`{"command":"get_image","_auth_token":"token","id":%d}`, id))
	if resp["status"] != "success" {
		t.Fatalf("get_image = %v", resp)
	}
	data, _ := resp["data"].(string)
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil || string(decoded) != "png-bytes" {
		t.Errorf("image data = %q, %v", decoded, err)
	}
}

func TestHandlerGetImageMemoryOnly(t *testing.T) {
	h := newTestHarness(t, nil)
	id := h.addScreenshot(t, store.NewScreenshot{ImagePath: "memory://hash-mem", ImageHash: "hash-mem"})

	resp := h.call(t, fmt.Sprintf(`{"command":"get_image","_auth_token":"token","id":%d}`, id))
	msg, _ := resp["error"].(string)
	if !strings.Contains(msg, "not found") {
		t.Errorf("get_image memory-only = %v", resp)
	}
}

func TestHandlerGetTimelineMillisecondHeuristic(t *testing.T) {
	h := newTestHarness(t, nil)
	meta := `{"process_icon":"icon-b64","process_path":"C:/apps/editor.exe"}`
	h.addScreenshot(t, store.NewScreenshot{ImagePath: "a.jpg", ImageHash: "hash-a", ProcessName: "editor.exe", Metadata: meta}, "x")

	endMs := (time.Now().Unix() + 3600) * 1000
	resp := h.call(t, fmt.Sprintf(`{"command":"get_timeline","_auth_token":"token","start_time":0,"end_time":%d}`, endMs))
	if resp["status"] != "success" {
		t.Fatalf("get_timeline = %v", resp)
	}
	records, _ := resp["records"].([]any)
	if len(records) != 1 {
		t.Fatalf("records = %v", records)
	}
	first, _ := records[0].(map[string]any)
	if first["process_icon"] != "icon-b64" || first["process_path"] != "C:/apps/editor.exe" {
		t.Errorf("record = %v", first)
	}
}

func TestHandlerGetScreenshotDetails(t *testing.T) {
	h := newTestHarness(t, nil)
	id := h.addScreenshot(t, store.NewScreenshot{
		ImagePath: "a.jpg", ImageHash: "hash-a", WindowTitle: "Notes",
		Metadata: `{"dhash":"00ff"}`,
	}, "hello", "world")

	resp := h.call(t, fmt.Sprintf(`{"command":"get_screenshot_details","_auth_token":"token","id":%d}`, id))
	if resp["status"] != "success" {
		t.Fatalf("get_screenshot_details = %v", resp)
	}
	record, _ := resp["record"].(map[string]any)
	if record["window_title"] != "Notes" {
		t.Errorf("record = %v", record)
	}
	meta, _ := record["metadata"].(map[string]any)
	if meta["dhash"] != "00ff" {
		t.Errorf("metadata = %v", meta)
	}
	results, _ := resp["ocr_results"].([]any)
	if len(results) != 2 {
		t.Errorf("ocr_results = %v", results)
	}

	resp = h.call(t, `{"command":"get_screenshot_details","_auth_token":"token","path":"a.jpg"}`)
	if resp["status"] != "success" {
		t.Errorf("details by path = %v", resp)
	}

	resp = h.call(t, `{"command":"get_screenshot_details","_auth_token":"token","id":9999}`)
	if _, ok := resp["error"]; !ok {
		t.Errorf("details for missing id = %v", resp)
	}
}

func TestHandlerDeleteScreenshot(t *testing.T) {
	index := &fakeSearchIndex{}
	h := newTestHarness(t, index)
	id := h.addScreenshot(t, store.NewScreenshot{ImagePath: "a.jpg", ImageHash: "hash-a"}, "x")

	resp := h.call(t, `{"command":"delete_screenshot","_auth_token":"token"}`)
	if _, ok := resp["error"]; !ok {
		t.Errorf("delete without id = %v", resp)
	}

	resp = h.call(t, fmt.Sprintf(`{"command":"delete_screenshot","_auth_token":"token","screenshot_id":%d}`, id))
	if resp["status"] != "success" || resp["deleted"] != true {
		t.Fatalf("delete_screenshot = %v", resp)
	}
	if resp["vector_deleted"] != float64(1) {
		t.Errorf("vector_deleted = %v", resp["vector_deleted"])
	}
	if len(index.deleted) != 1 || index.deleted[0] != id {
		t.Errorf("index deletions = %v", index.deleted)
	}
}

func TestHandlerDeleteByTimeRange(t *testing.T) {
	index := &fakeSearchIndex{}
	h := newTestHarness(t, index)
	h.addScreenshot(t, store.NewScreenshot{ImagePath: "a.jpg", ImageHash: "hash-a"}, "x")
	h.addScreenshot(t, store.NewScreenshot{ImagePath: "b.jpg", ImageHash: "hash-b"}, "y")

	resp := h.call(t, `{"command":"delete_by_time_range","_auth_token":"token","start_time":0}`)
	if _, ok := resp["error"]; !ok {
		t.Errorf("delete range without end = %v", resp)
	}

	endMs := (time.Now().Unix() + 3600) * 1000
	resp = h.call(t, fmt.Sprintf(`{"command":"delete_by_time_range","_auth_token":"token","start_time":0,"end_time":%d}`, endMs))
	if resp["status"] != "success" {
		t.Fatalf("delete_by_time_range = %v", resp)
	}
	if resp["deleted_count"] != float64(2) {
		t.Errorf("deleted_count = %v", resp["deleted_count"])
	}
	if resp["vector_deleted"] != float64(2) {
		t.Errorf("vector_deleted = %v", resp["vector_deleted"])
	}
}

func TestHandlerDeleteVectorsFaultTolerant(t *testing.T) {
	index := &fakeSearchIndex{failDelete: map[int64]bool{2: true}}
	h := newTestHarness(t, index)

	deleted := h.handler.deleteVectors(context.Background(), []int64{1, 2, 3})
	if deleted != 2 {
		t.Errorf("deleteVectors = %d, want 2 (one failure tolerated)", deleted)
	}
	if len(index.deleted) != 2 {
		t.Errorf("index deletions = %v", index.deleted)
	}
}
