package capture

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"glimpse/internal/logging"
)

// Sink receives accepted frames for asynchronous processing. Pending
// reports the number of frames queued or in flight so the scheduler can
// suppress focus-change captures under load.
type Sink interface {
	Enqueue(frame *Frame)
	Pending() int
}

// SchedulerConfig carries the capture cadence and quality knobs.
type SchedulerConfig struct {
	PollInterval        time.Duration
	CaptureInterval     time.Duration
	MaxPending          int
	FocusSettle         time.Duration
	MaxSide             int
	JPEGQuality         int
	RedundancyThreshold int
	HistorySize         int
}

// Scheduler drives the capture loop: poll the focused window, run the
// exclusion policy, fire on focus changes or the periodic interval, drop
// redundant frames, and enqueue the rest.
type Scheduler struct {
	cfg       SchedulerConfig
	inspector Inspector
	grabber   Grabber
	policy    *Policy
	icons     *IconCache
	sink      Sink
	logger    *slog.Logger

	paused  atomic.Bool
	history *History

	lastHandle  uintptr
	haveHandle  bool
	lastCapture time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewScheduler wires a scheduler. All collaborators are required except
// icons, which may be nil when no platform icon source exists.
func NewScheduler(cfg SchedulerConfig, inspector Inspector, grabber Grabber, policy *Policy, icons *IconCache, sink Sink, logger *slog.Logger) *Scheduler {
	if icons == nil {
		icons = NewIconCache(nil)
	}
	return &Scheduler{
		cfg:       cfg,
		inspector: inspector,
		grabber:   grabber,
		policy:    policy,
		icons:     icons,
		sink:      sink,
		logger:    logging.WithComponent(logger, "capture"),
		history:   NewHistory(cfg.HistorySize),
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Pause suspends capturing. The poll loop keeps running so Resume takes
// effect within one poll interval.
func (s *Scheduler) Pause() {
	if s.paused.CompareAndSwap(false, true) {
		s.logger.Info("capture paused")
	}
}

// Resume re-enables capturing.
func (s *Scheduler) Resume() {
	if s.paused.CompareAndSwap(true, false) {
		s.logger.Info("capture resumed")
	}
}

// Paused reports whether capturing is currently suspended.
func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("capture scheduler started",
		logging.Duration("poll_interval", s.cfg.PollInterval),
		logging.Duration("capture_interval", s.cfg.CaptureInterval))
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("capture scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one poll iteration.
func (s *Scheduler) tick(ctx context.Context) {
	if s.paused.Load() {
		return
	}

	win, err := s.inspector.ActiveWindow()
	if err != nil {
		s.logger.Debug("active window lookup failed", logging.Error(err))
		return
	}

	// Resolve the process name up front only when process exclusions exist;
	// the policy falls back to the inspector otherwise.
	processName := ""
	if win.Handle != 0 && len(s.policy.Settings().Processes) > 0 {
		processName = s.inspector.ProcessName(win.Handle)
	}

	if s.policy.Excluded(win.Title, win.Handle, processName) {
		s.lastHandle = win.Handle
		s.haveHandle = true
		return
	}

	now := s.now()
	trigger := ""
	if !s.haveHandle || win.Handle != s.lastHandle {
		if s.sink.Pending() <= s.cfg.MaxPending {
			trigger = "focus_change"
		}
	} else if now.Sub(s.lastCapture) >= s.cfg.CaptureInterval {
		trigger = "interval"
	}
	if trigger == "" {
		return
	}

	if trigger == "focus_change" {
		// Let the newly focused window finish painting before grabbing it.
		s.sleep(s.cfg.FocusSettle)
	}

	// Re-resolve after the settle delay; focus may have moved again.
	cur, err := s.inspector.ActiveWindow()
	if err != nil {
		s.logger.Debug("active window lookup failed", logging.Error(err))
		return
	}

	img, err := s.grabber.Grab(ctx, cur.Rect)
	if err != nil {
		s.logger.Warn("screen grab failed", logging.Error(err))
		return
	}

	img = Downscale(img, s.cfg.MaxSide)
	hash := ComputeHash(img)

	if !s.history.Redundant(hash, s.cfg.RedundancyThreshold) {
		frame, err := s.buildFrame(cur, img, hash, processName, now)
		if err != nil {
			s.logger.Warn("frame encoding failed", logging.Error(err))
			return
		}
		s.history.Add(hash)
		s.sink.Enqueue(frame)
		s.logger.Info("frame captured",
			logging.String("trigger", trigger),
			logging.Int("bytes", frame.Size()),
			logging.String("window_title", cur.Title),
			logging.String(logging.FieldFrameHash, hash.String()))
	}

	s.lastCapture = now
	s.lastHandle = cur.Handle
	s.haveHandle = true
}

func (s *Scheduler) buildFrame(win Window, img image.Image, hash Hash, processName string, capturedAt time.Time) (*Frame, error) {
	data, err := EncodeJPEG(img, s.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}
	name := processName
	if name == "" && win.Handle != 0 {
		name = s.inspector.ProcessName(win.Handle)
	}
	path := ""
	if win.Handle != 0 {
		path = s.inspector.ProcessPath(win.Handle)
	}
	bounds := img.Bounds()
	return &Frame{
		Data:        data,
		Hash:        hash,
		Title:       win.Title,
		ProcessName: name,
		ProcessPath: path,
		Icon:        s.icons.Icon(path),
		Monitor: Geometry{
			Left:   win.Rect.Min.X,
			Top:    win.Rect.Min.Y,
			Width:  win.Rect.Dx(),
			Height: win.Rect.Dy(),
		},
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		CapturedAt: capturedAt,
	}, nil
}
