package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"glimpse/internal/capture"
	"glimpse/internal/command"
	"glimpse/internal/config"
	"glimpse/internal/logging"
	"glimpse/internal/pipeline"
	"glimpse/internal/recognize"
	"glimpse/internal/storagesvc"
	"glimpse/internal/store"
	"glimpse/internal/vectorindex"
)

// RunOptions carries the platform collaborators the daemon cannot build
// itself. Inspector and Grabber are required; Icons and Encoder are
// optional and disable icon extraction and semantic indexing when nil.
type RunOptions struct {
	Inspector capture.Inspector
	Grabber   capture.Grabber
	Icons     capture.IconSource
	Encoder   vectorindex.Encoder
}

// Run wires every component from configuration and blocks until a signal
// arrives or a stop command is handled.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger, opts RunOptions) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if opts.Inspector == nil || opts.Grabber == nil {
		return errors.New("platform inspector and grabber are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	catalog, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	storage := storagesvc.NewSocketClient(cfg.Storage.ServiceSocket,
		time.Duration(cfg.Storage.ConnectTimeout)*time.Second,
		time.Duration(cfg.Storage.RequestTimeout)*time.Second)

	// The recognizer serves both the worker and any synchronous callers;
	// the wrapper keeps at most one inference in flight.
	recognizer := recognize.NewSerialized(recognize.NewSocketClient(cfg.Recognizer.Socket,
		time.Duration(cfg.Recognizer.RequestTimeout)*time.Second))

	policy := capture.NewPolicy(opts.Inspector)
	settingsStore := capture.NewSettingsStore(cfg.FiltersPath())
	settings, err := settingsStore.Load()
	if err != nil {
		logger.Warn("exclusion settings unreadable, using defaults", logging.Error(err))
	}
	policy.Replace(settings)

	var index vectorindex.Index
	if cfg.Index.Enabled && opts.Encoder != nil {
		idx, err := vectorindex.Open(signalCtx, cfg.Index.DSN, cfg.Index.Collection, opts.Encoder, storage, logger)
		if err != nil {
			logger.Warn("semantic index unavailable, continuing without it", logging.Error(err))
		} else {
			index = idx
		}
	}

	icons := capture.NewIconCache(opts.Icons)
	worker := pipeline.NewWorker(storage, recognizer, catalog, index, cfg.Recognizer.ConfidenceThreshold, logger)
	scheduler := capture.NewScheduler(schedulerConfig(cfg), opts.Inspector, opts.Grabber, policy, icons, worker, logger)

	d, err := New(cfg, catalog, scheduler, worker, index, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath, generated := command.ResolveSocketPath(cfg.Paths.ControlSocket)
	handler := command.NewHandler(command.HandlerConfig{
		Auth:          command.NewAuthSession(cfg.Control.AuthToken),
		Controller:    d,
		Stats:         worker,
		Policy:        policy,
		Settings:      settingsStore,
		Catalog:       catalog,
		Index:         index,
		Icons:         icons,
		ScreenshotDir: filepath.Join(cfg.Paths.DataDir, "screenshots"),
		Interval:      time.Duration(cfg.Capture.CaptureInterval) * time.Second,
		Overfetch:     cfg.Index.OverfetchMultiplier,
		Logger:        logger,
	})
	server, err := command.NewServer(signalCtx, socketPath, handler, logger)
	if err != nil {
		return fmt.Errorf("start control server: %w", err)
	}
	defer server.Close()
	if generated {
		// Advertise the unguessable socket once so a parent process can
		// capture it.
		fmt.Println(socketPath)
	}
	server.Serve()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	select {
	case <-signalCtx.Done():
	case <-d.Done():
	}
	logger.Info("glimpse daemon shutting down")
	return nil
}

func schedulerConfig(cfg *config.Config) capture.SchedulerConfig {
	return capture.SchedulerConfig{
		PollInterval:        time.Duration(cfg.Capture.PollIntervalMillis) * time.Millisecond,
		CaptureInterval:     time.Duration(cfg.Capture.CaptureInterval) * time.Second,
		MaxPending:          cfg.Capture.MaxPending,
		FocusSettle:         time.Duration(cfg.Capture.FocusSettleMillis) * time.Millisecond,
		MaxSide:             cfg.Capture.MaxSide,
		JPEGQuality:         cfg.Capture.JPEGQuality,
		RedundancyThreshold: cfg.Capture.RedundancyThreshold,
		HistorySize:         cfg.Capture.HistorySize,
	}
}
