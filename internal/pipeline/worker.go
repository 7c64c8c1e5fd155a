package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"glimpse/internal/capture"
	"glimpse/internal/logging"
	"glimpse/internal/recognize"
	"glimpse/internal/storagesvc"
	"glimpse/internal/store"
	"glimpse/internal/vectorindex"
)

// overloadThreshold is the queue depth past which enqueues log a warning
// with the estimated memory held by queued frames.
const overloadThreshold = 10

// Stats is a point-in-time snapshot of pipeline throughput.
type Stats struct {
	Processed   int64 `json:"processed_count"`
	Failed      int64 `json:"failed_count"`
	Duplicates  int64 `json:"duplicate_count"`
	Pending     int   `json:"pending_count"`
	QueuedBytes int   `json:"queued_bytes"`
}

// Worker drains the frame queue: stage, recognize, commit or abort, then
// record the frame in the catalog and semantic index.
type Worker struct {
	queue      *Queue
	storage    storagesvc.Client
	recognizer recognize.Recognizer
	catalog    *store.Store
	index      vectorindex.Index
	threshold  float64
	logger     *slog.Logger

	inFlight   atomic.Int32
	processed  atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
}

// NewWorker wires a worker. index may be nil when semantic indexing is
// disabled.
func NewWorker(storage storagesvc.Client, recognizer recognize.Recognizer, catalog *store.Store, index vectorindex.Index, confidenceThreshold float64, logger *slog.Logger) *Worker {
	return &Worker{
		queue:      NewQueue(),
		storage:    storage,
		recognizer: recognizer,
		catalog:    catalog,
		index:      index,
		threshold:  confidenceThreshold,
		logger:     logging.WithComponent(logger, "pipeline"),
	}
}

// Enqueue implements capture.Sink.
func (w *Worker) Enqueue(frame *capture.Frame) {
	w.queue.Push(frame)
	if depth := w.queue.Len(); depth > overloadThreshold {
		w.logger.Warn("frame queue is backing up",
			logging.Int("queue_depth", depth),
			logging.String("queued_memory", humanBytes(w.queue.QueuedBytes())),
			logging.String(logging.FieldErrorHint, "recognizer may be overloaded"))
	}
}

// Pending implements capture.Sink: queued frames plus the one in flight.
func (w *Worker) Pending() int {
	return w.queue.Len() + int(w.inFlight.Load())
}

// Pause stops dequeuing. Frames keep accumulating and nothing is
// discarded; processing resumes where it left off.
func (w *Worker) Pause() {
	w.queue.SetPaused(true)
}

// Resume re-enables dequeuing.
func (w *Worker) Resume() {
	w.queue.SetPaused(false)
}

// Snapshot returns current throughput counters.
func (w *Worker) Snapshot() Stats {
	return Stats{
		Processed:   w.processed.Load(),
		Failed:      w.failed.Load(),
		Duplicates:  w.duplicates.Load(),
		Pending:     w.Pending(),
		QueuedBytes: w.queue.QueuedBytes(),
	}
}

// Run processes frames until ctx is cancelled and the queue is drained of
// nothing more to pop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("pipeline worker started")
	go func() {
		<-ctx.Done()
		w.queue.Close()
	}()
	for {
		// Mark the frame in flight under the queue lock so Pending never
		// undercounts between the dequeue and the counter update.
		frame, ok := w.queue.PopAndMark(func() { w.inFlight.Add(1) })
		if !ok {
			w.logger.Info("pipeline worker stopped")
			return ctx.Err()
		}
		w.processOne(ctx, frame)
		w.inFlight.Add(-1)
	}
}

func (w *Worker) processOne(ctx context.Context, frame *capture.Frame) {

	if err := w.processFrame(ctx, frame); err != nil {
		w.failed.Add(1)
		w.logger.Error("frame processing failed",
			logging.Error(err),
			logging.String("window_title", frame.Title))
		return
	}
	w.processed.Add(1)
}

func frameMetadata(frame *capture.Frame) map[string]any {
	return map[string]any{
		"monitor":      frame.Monitor,
		"dhash":        frame.Hash.String(),
		"process_path": frame.ProcessPath,
		"process_icon": frame.Icon,
		"timestamp":    frame.CapturedAt.Format("20060102_150405"),
	}
}

func stageRequest(frame *capture.Frame, hash string, metadata map[string]any) storagesvc.StageRequest {
	return storagesvc.StageRequest{
		ImageData:   frame.Data,
		ImageHash:   hash,
		Width:       frame.Width,
		Height:      frame.Height,
		WindowTitle: frame.Title,
		ProcessName: frame.ProcessName,
		Metadata:    metadata,
	}
}

func (w *Worker) processFrame(ctx context.Context, frame *capture.Frame) error {
	hash := store.ContentHash(frame.Data)
	metadata := frameMetadata(frame)

	// Phase one: park the frame with the storage service before the slow
	// recognition step. A stage failure is not fatal; the single-shot save
	// path below covers it.
	staged := false
	var stagedID int64
	if id, err := w.storage.Stage(ctx, stageRequest(frame, hash, metadata)); err != nil {
		w.logger.Warn("staging failed, will save single-shot",
			logging.Error(err),
			logging.String(logging.FieldFrameHash, hash))
	} else {
		staged, stagedID = true, id
	}

	spans, err := w.recognizer.Recognize(ctx, frame.Data)
	if err != nil {
		if staged {
			w.abort(ctx, stagedID, "recognition failed: "+err.Error())
		}
		return fmt.Errorf("recognize frame: %w", err)
	}
	filtered := recognize.FilterConfidence(spans, w.threshold)

	var result storagesvc.SaveResult
	if staged {
		result, err = w.storage.Commit(ctx, stagedID, filtered)
		if err != nil {
			w.abort(ctx, stagedID, "commit failed: "+err.Error())
			return fmt.Errorf("commit frame: %w", err)
		}
	} else {
		result, err = w.storage.Save(ctx, storagesvc.SaveRequest{
			StageRequest: stageRequest(frame, hash, metadata),
			Spans:        filtered,
		})
		if err != nil {
			return fmt.Errorf("save frame: %w", err)
		}
	}
	if result.Duplicate {
		w.duplicates.Add(1)
		w.logger.Debug("duplicate frame skipped", logging.String(logging.FieldFrameHash, hash))
		return nil
	}

	imagePath := result.ImagePath
	if imagePath == "" {
		imagePath = "memory://" + hash
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode frame metadata: %w", err)
	}
	outcome, err := w.catalog.SaveOCRData(ctx, store.NewScreenshot{
		ImagePath:   imagePath,
		ImageHash:   hash,
		Width:       frame.Width,
		Height:      frame.Height,
		WindowTitle: frame.Title,
		ProcessName: frame.ProcessName,
		Metadata:    string(metaJSON),
	}, store.ResultsFromSpans(filtered))
	if err != nil {
		return fmt.Errorf("record frame: %w", err)
	}

	// Semantic indexing is best-effort; a failure must not lose the frame.
	if w.index != nil {
		entry := vectorindex.Entry{
			ScreenshotID: outcome.ScreenshotID,
			ImagePath:    imagePath,
			WindowTitle:  frame.Title,
			ProcessName:  frame.ProcessName,
			OCRText:      recognize.JoinText(filtered),
			TextCount:    len(filtered),
			Width:        frame.Width,
			Height:       frame.Height,
			CreatedAt:    frame.CapturedAt,
		}
		if _, err := w.index.Add(ctx, entry); err != nil {
			w.logger.Warn("semantic index write failed",
				logging.Error(err),
				logging.Int64(logging.FieldScreenshotID, outcome.ScreenshotID))
		}
	}

	w.logger.Info("frame committed",
		logging.Int64(logging.FieldScreenshotID, outcome.ScreenshotID),
		logging.Int("span_count", len(filtered)),
		logging.String(logging.FieldFrameHash, hash))
	return nil
}

// abort discards a staged frame. It is called exactly once per staged
// frame that did not commit; a failure here is logged and dropped because
// retrying risks double-abort on the service side.
func (w *Worker) abort(ctx context.Context, screenshotID int64, reason string) {
	if err := w.storage.Abort(ctx, screenshotID, reason); err != nil {
		w.logger.Error("abort failed",
			logging.Error(err),
			logging.Int64(logging.FieldScreenshotID, screenshotID))
		return
	}
	w.logger.Info("staged frame aborted",
		logging.Int64(logging.FieldScreenshotID, screenshotID),
		logging.String("reason", reason))
}

func humanBytes(n int) string {
	value := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024.0 {
			return fmt.Sprintf("%.1f%s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.1fPB", value)
}
