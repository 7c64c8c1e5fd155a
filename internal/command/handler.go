package command

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"glimpse/internal/capture"
	"glimpse/internal/logging"
	"glimpse/internal/pipeline"
	"glimpse/internal/store"
	"glimpse/internal/vectorindex"
)

// millisecondThreshold is the magnitude heuristic for get_timeline bounds:
// epoch seconds never reach this, epoch milliseconds always do.
const millisecondThreshold = 1e10

// memoryPathPrefix marks catalog rows whose image bytes were never written
// to local disk.
const memoryPathPrefix = "memory://"

// Controller is the daemon surface the lifecycle commands drive.
type Controller interface {
	Pause()
	Resume()
	Stop()
	Paused() bool
	Stopped() bool
}

// StatsSource reports pipeline throughput for the status command.
type StatsSource interface {
	Snapshot() pipeline.Stats
}

// HandlerConfig wires a Handler. Index, Icons, Settings, and Stats may be
// nil; the corresponding commands degrade or report errors instead of
// panicking.
type HandlerConfig struct {
	Auth          *AuthSession
	Controller    Controller
	Stats         StatsSource
	Policy        *capture.Policy
	Settings      *capture.SettingsStore
	Catalog       *store.Store
	Index         vectorindex.Index
	Icons         *capture.IconCache
	ScreenshotDir string
	Interval      time.Duration
	Overfetch     int
	Logger        *slog.Logger
}

// Handler dispatches decoded commands against the daemon's components.
type Handler struct {
	auth          *AuthSession
	controller    Controller
	stats         StatsSource
	policy        *capture.Policy
	settings      *capture.SettingsStore
	catalog       *store.Store
	index         vectorindex.Index
	icons         *capture.IconCache
	screenshotDir string
	interval      time.Duration
	overfetch     int
	logger        *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	auth := cfg.Auth
	if auth == nil {
		auth = NewAuthSession("")
	}
	overfetch := cfg.Overfetch
	if overfetch < 1 {
		overfetch = 2
	}
	return &Handler{
		auth:          auth,
		controller:    cfg.Controller,
		stats:         cfg.Stats,
		policy:        cfg.Policy,
		settings:      cfg.Settings,
		catalog:       cfg.Catalog,
		index:         cfg.Index,
		icons:         cfg.Icons,
		screenshotDir: cfg.ScreenshotDir,
		interval:      cfg.Interval,
		overfetch:     overfetch,
		logger:        logging.WithComponent(logger, "command"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusOnlyResponse struct {
	Status string `json:"status"`
}

// Handle processes one raw request and always returns a JSON-encodable
// response; expected failures become the error response shape.
func (h *Handler) Handle(ctx context.Context, data []byte) any {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errorResponse{Error: fmt.Sprintf("%v: malformed request", ErrValidation)}
	}
	if err := h.auth.Verify(env.AuthToken, env.SeqNo); err != nil {
		h.logger.Warn("request rejected",
			logging.String(logging.FieldCommand, env.Command),
			logging.Error(err))
		return errorResponse{Error: err.Error()}
	}

	name := strings.ToLower(strings.TrimSpace(env.Command))
	cmd, err := decodeCommand(name, data)
	if err != nil {
		return errorResponse{Error: fmt.Sprintf("%v: %v", ErrValidation, err)}
	}

	resp, err := h.dispatch(ctx, cmd)
	if err != nil {
		h.logger.Warn("command failed",
			logging.String(logging.FieldCommand, name),
			logging.Error(err))
		return errorResponse{Error: err.Error()}
	}
	return resp
}

func (h *Handler) dispatch(ctx context.Context, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case PauseCommand:
		h.controller.Pause()
		return statusOnlyResponse{Status: "paused"}, nil
	case ResumeCommand:
		h.controller.Resume()
		return statusOnlyResponse{Status: "resumed"}, nil
	case StopCommand:
		h.controller.Stop()
		return statusOnlyResponse{Status: "stopped"}, nil
	case StatusCommand:
		return h.status(ctx)
	case UpdateFiltersCommand:
		return h.updateFilters(c)
	case SearchCommand:
		return h.search(ctx, c)
	case SemanticSearchCommand:
		return h.semanticSearch(ctx, c)
	case ListProcessesCommand:
		return h.listProcesses(ctx, c)
	case GetImageCommand:
		return h.getImage(ctx, c)
	case GetTimelineCommand:
		return h.getTimeline(ctx, c)
	case GetDetailsCommand:
		return h.getDetails(ctx, c)
	case DeleteScreenshotCommand:
		return h.deleteScreenshot(ctx, c)
	case DeleteRangeCommand:
		return h.deleteRange(ctx, c)
	case UnknownCommand:
		return nil, errors.New("unknown command")
	default:
		return nil, errors.New("unknown command")
	}
}

type statusResponse struct {
	Paused   bool              `json:"paused"`
	Stopped  bool              `json:"stopped"`
	Interval float64           `json:"interval"`
	OCRStats pipeline.Stats    `json:"ocr_stats"`
	Database *store.Statistics `json:"database,omitempty"`
}

func (h *Handler) status(ctx context.Context) (any, error) {
	resp := statusResponse{
		Paused:   h.controller.Paused(),
		Stopped:  h.controller.Stopped(),
		Interval: h.interval.Seconds(),
	}
	if h.stats != nil {
		resp.OCRStats = h.stats.Snapshot()
	}
	if h.catalog != nil {
		stats, err := h.catalog.Statistics(ctx)
		if err != nil {
			h.logger.Warn("catalog statistics failed", logging.Error(err))
		} else {
			resp.Database = &stats
		}
	}
	return resp, nil
}

type filtersResponse struct {
	Status  string           `json:"status"`
	Filters capture.Settings `json:"filters"`
}

func (h *Handler) updateFilters(cmd UpdateFiltersCommand) (any, error) {
	settings := h.policy.Apply(cmd.Processes, cmd.Titles, cmd.IgnoreProtected)
	if h.settings != nil {
		if err := h.settings.Save(settings); err != nil {
			return nil, fmt.Errorf("%w: persist filters: %v", ErrUpstream, err)
		}
	}
	h.logger.Info("exclusion filters updated",
		logging.Int("process_count", len(settings.Processes)),
		logging.Int("title_count", len(settings.Titles)))
	return filtersResponse{Status: "success", Filters: settings}, nil
}

type searchResponse struct {
	Status  string            `json:"status"`
	Results []store.SearchHit `json:"results"`
}

func (h *Handler) search(ctx context.Context, cmd SearchCommand) (any, error) {
	hits, err := h.catalog.Search(ctx, store.SearchOptions{
		Query:        cmd.Query,
		Limit:        cmd.Limit,
		Offset:       cmd.Offset,
		Fuzzy:        cmd.Fuzzy,
		ProcessNames: cmd.ProcessNames,
		StartTime:    cmd.StartTime,
		EndTime:      cmd.EndTime,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrUpstream, err)
	}
	if hits == nil {
		hits = []store.SearchHit{}
	}
	return searchResponse{Status: "success", Results: hits}, nil
}

type semanticSearchResponse struct {
	Status  string            `json:"status"`
	Results []vectorindex.Hit `json:"results"`
}

func (h *Handler) semanticSearch(ctx context.Context, cmd SemanticSearchCommand) (any, error) {
	if h.index == nil {
		return nil, fmt.Errorf("%w: semantic index not enabled", ErrValidation)
	}

	// The index cannot filter by process or time, so over-fetch and apply
	// both as a post-hoc pass.
	target := cmd.Limit + cmd.Offset
	if target < cmd.Limit {
		target = cmd.Limit
	}
	fetch := target * h.overfetch
	if fetch < target+20 {
		fetch = target + 20
	}
	hits, err := h.index.Search(ctx, cmd.Query, fetch)
	if err != nil {
		return nil, fmt.Errorf("%w: semantic search: %v", ErrUpstream, err)
	}

	filtered := filterHits(hits, cmd.ProcessNames, cmd.StartTime, cmd.EndTime)
	if cmd.Offset < len(filtered) {
		filtered = filtered[cmd.Offset:]
	} else {
		filtered = nil
	}
	if cmd.Limit > 0 && len(filtered) > cmd.Limit {
		filtered = filtered[:cmd.Limit]
	}
	if filtered == nil {
		filtered = []vectorindex.Hit{}
	}
	return semanticSearchResponse{Status: "success", Results: filtered}, nil
}

func filterHits(hits []vectorindex.Hit, processNames []string, startTime, endTime *float64) []vectorindex.Hit {
	var out []vectorindex.Hit
	for _, hit := range hits {
		if len(processNames) > 0 && !containsProcess(processNames, hit.ProcessName) {
			continue
		}
		if startTime != nil || endTime != nil {
			created, err := time.ParseInLocation("2006-01-02 15:04:05", hit.CreatedAt, time.UTC)
			if err == nil {
				ts := float64(created.Unix())
				if startTime != nil && ts < *startTime {
					continue
				}
				if endTime != nil && ts > *endTime {
					continue
				}
			}
		}
		out = append(out, hit)
	}
	return out
}

func containsProcess(names []string, name string) bool {
	name = strings.TrimSpace(name)
	for _, candidate := range names {
		if strings.TrimSpace(candidate) == name {
			return true
		}
	}
	return false
}

type processesResponse struct {
	Status    string               `json:"status"`
	Processes []store.ProcessCount `json:"processes"`
}

func (h *Handler) listProcesses(ctx context.Context, cmd ListProcessesCommand) (any, error) {
	processes, err := h.catalog.ListProcesses(ctx, cmd.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list processes: %v", ErrUpstream, err)
	}
	if processes == nil {
		processes = []store.ProcessCount{}
	}
	return processesResponse{Status: "success", Processes: processes}, nil
}

type imageResponse struct {
	Status   string `json:"status"`
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

func (h *Handler) getImage(ctx context.Context, cmd GetImageCommand) (any, error) {
	imagePath := ""
	if cmd.ID != nil {
		record, err := h.catalog.ScreenshotByID(ctx, *cmd.ID)
		switch {
		case err == nil:
			imagePath = record.ImagePath
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, fmt.Errorf("%w: lookup image: %v", ErrUpstream, err)
		}
	}
	if imagePath == "" {
		imagePath = cmd.Path
	}
	if imagePath == "" {
		return nil, fmt.Errorf("%w: image not found (no id or path provided)", ErrNotFound)
	}
	if strings.HasPrefix(imagePath, memoryPathPrefix) {
		return nil, fmt.Errorf("%w: image bytes were not stored on disk", ErrNotFound)
	}

	imagePath = filepath.Clean(imagePath)
	if _, err := os.Stat(imagePath); err != nil {
		candidate := filepath.Join(h.screenshotDir, filepath.Base(imagePath))
		if _, cerr := os.Stat(candidate); cerr != nil {
			return nil, fmt.Errorf("%w: file not found, tried %s and %s", ErrNotFound, imagePath, candidate)
		}
		imagePath = candidate
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %v", ErrUpstream, err)
	}
	return imageResponse{
		Status:   "success",
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: "image/png",
	}, nil
}

type timelineRecord struct {
	ID          int64          `json:"id"`
	ImagePath   string         `json:"image_path"`
	WindowTitle string         `json:"window_title"`
	ProcessName string         `json:"process_name"`
	Timestamp   int64          `json:"timestamp"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Metadata    map[string]any `json:"metadata"`
	ProcessIcon string         `json:"process_icon,omitempty"`
	ProcessPath string         `json:"process_path,omitempty"`
}

type timelineResponse struct {
	Status  string           `json:"status"`
	Records []timelineRecord `json:"records"`
}

func (h *Handler) getTimeline(ctx context.Context, cmd GetTimelineCommand) (any, error) {
	start, end := cmd.StartTime, cmd.EndTime
	if start > millisecondThreshold {
		start /= 1000.0
	}
	if end > millisecondThreshold {
		end /= 1000.0
	}

	entries, err := h.catalog.Timeline(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: timeline: %v", ErrUpstream, err)
	}

	records := make([]timelineRecord, 0, len(entries))
	for _, entry := range entries {
		record := timelineRecord{
			ID:          entry.ID,
			ImagePath:   entry.ImagePath,
			WindowTitle: entry.WindowTitle,
			ProcessName: entry.ProcessName,
			Timestamp:   entry.Timestamp,
			Width:       entry.Width,
			Height:      entry.Height,
		}
		if entry.Metadata != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(entry.Metadata), &meta); err == nil {
				record.Metadata = meta
				if icon, ok := meta["process_icon"].(string); ok {
					record.ProcessIcon = icon
				}
				if path, ok := meta["process_path"].(string); ok {
					record.ProcessPath = path
				}
			}
		}
		if record.ProcessIcon == "" && record.ProcessPath != "" && h.icons != nil {
			record.ProcessIcon = h.icons.Icon(record.ProcessPath)
		}
		records = append(records, record)
	}
	return timelineResponse{Status: "success", Records: records}, nil
}

type screenshotRecord struct {
	ID          int64          `json:"id"`
	ImagePath   string         `json:"image_path"`
	ImageHash   string         `json:"image_hash"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	WindowTitle string         `json:"window_title"`
	ProcessName string         `json:"process_name"`
	CreatedAt   string         `json:"created_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type detailsResponse struct {
	Status     string            `json:"status"`
	Record     screenshotRecord  `json:"record"`
	OCRResults []store.OCRResult `json:"ocr_results"`
}

func (h *Handler) getDetails(ctx context.Context, cmd GetDetailsCommand) (any, error) {
	var (
		record store.Screenshot
		found  bool
	)
	if cmd.ID != nil && *cmd.ID != -1 {
		shot, err := h.catalog.ScreenshotByID(ctx, *cmd.ID)
		switch {
		case err == nil:
			record, found = shot, true
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, fmt.Errorf("%w: lookup screenshot: %v", ErrUpstream, err)
		}
	}
	if !found && cmd.Path != "" {
		shot, err := h.catalog.ScreenshotByPath(ctx, cmd.Path)
		switch {
		case err == nil:
			record, found = shot, true
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, fmt.Errorf("%w: lookup screenshot: %v", ErrUpstream, err)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: image not found", ErrNotFound)
	}

	results, err := h.catalog.OCRResultsByScreenshot(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load recognized text: %v", ErrUpstream, err)
	}
	if results == nil {
		results = []store.OCRResult{}
	}

	out := screenshotRecord{
		ID:          record.ID,
		ImagePath:   record.ImagePath,
		ImageHash:   record.ImageHash,
		Width:       record.Width,
		Height:      record.Height,
		WindowTitle: record.WindowTitle,
		ProcessName: record.ProcessName,
		CreatedAt:   record.CreatedAt,
	}
	if record.Metadata != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(record.Metadata), &meta); err == nil {
			out.Metadata = meta
		}
	}
	return detailsResponse{Status: "success", Record: out, OCRResults: results}, nil
}

type deleteResponse struct {
	Status        string `json:"status"`
	Deleted       bool   `json:"deleted"`
	VectorDeleted int    `json:"vector_deleted"`
}

func (h *Handler) deleteScreenshot(ctx context.Context, cmd DeleteScreenshotCommand) (any, error) {
	if cmd.ScreenshotID == nil {
		return nil, fmt.Errorf("%w: screenshot_id is required", ErrValidation)
	}
	_, deleted, err := h.catalog.DeleteScreenshot(ctx, *cmd.ScreenshotID)
	if err != nil {
		return nil, fmt.Errorf("%w: delete screenshot: %v", ErrUpstream, err)
	}
	vectorDeleted := h.deleteVectors(ctx, []int64{*cmd.ScreenshotID})
	return deleteResponse{Status: "success", Deleted: deleted, VectorDeleted: vectorDeleted}, nil
}

type deleteRangeResponse struct {
	Status        string `json:"status"`
	DeletedCount  int    `json:"deleted_count"`
	VectorDeleted int    `json:"vector_deleted"`
}

func (h *Handler) deleteRange(ctx context.Context, cmd DeleteRangeCommand) (any, error) {
	if cmd.StartTime == nil || cmd.EndTime == nil {
		return nil, fmt.Errorf("%w: start_time and end_time are required", ErrValidation)
	}

	// Collect ids before the relational delete so index entries can still
	// be cleaned up afterwards.
	entries, err := h.catalog.Timeline(ctx, *cmd.StartTime/1000.0, *cmd.EndTime/1000.0)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve time range: %v", ErrUpstream, err)
	}
	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}

	count, _, err := h.catalog.DeleteByTimeRange(ctx, *cmd.StartTime, *cmd.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: delete by time range: %v", ErrUpstream, err)
	}
	vectorDeleted := h.deleteVectors(ctx, ids)
	return deleteRangeResponse{Status: "success", DeletedCount: count, VectorDeleted: vectorDeleted}, nil
}

// deleteVectors removes index entries one id at a time so a single failure
// never aborts the rest of the batch.
func (h *Handler) deleteVectors(ctx context.Context, ids []int64) int {
	if h.index == nil || len(ids) == 0 {
		return 0
	}
	deleted := 0
	for _, id := range ids {
		if err := h.index.DeleteByScreenshotIDs(ctx, []int64{id}); err != nil {
			h.logger.Warn("index delete failed",
				logging.Error(err),
				logging.Int64(logging.FieldScreenshotID, id))
			continue
		}
		deleted++
	}
	return deleted
}
