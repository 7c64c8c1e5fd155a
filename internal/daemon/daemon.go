package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"glimpse/internal/capture"
	"glimpse/internal/config"
	"glimpse/internal/logging"
	"glimpse/internal/pipeline"
	"glimpse/internal/store"
	"glimpse/internal/vectorindex"
)

// Daemon owns the long-lived loops: the capture scheduler, the pipeline
// worker, and the retention sweep. It implements the control channel's
// Controller surface.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	catalog   *store.Store
	scheduler *capture.Scheduler
	worker    *pipeline.Worker
	index     vectorindex.Index

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	stopped  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
}

// New constructs a daemon from initialized components. index may be nil
// when semantic indexing is disabled.
func New(cfg *config.Config, catalog *store.Store, scheduler *capture.Scheduler, worker *pipeline.Worker, index vectorindex.Index, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || catalog == nil || scheduler == nil || worker == nil {
		return nil, errors.New("daemon requires config, catalog, scheduler, and worker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "glimpsed.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "daemon"),
		catalog:   catalog,
		scheduler: scheduler,
		worker:    worker,
		index:     index,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		done:      make(chan struct{}),
	}, nil
}

// Done is closed once the daemon has fully stopped, whether by signal or
// by a stop command.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Start acquires the instance lock and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another glimpse daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.stopped.Store(false)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.scheduler.Run(d.ctx)
	}()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.worker.Run(d.ctx)
	}()
	if d.cfg.Retention.Days > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.retentionLoop(d.ctx)
		}()
	}

	d.running.Store(true)
	d.logger.Info("glimpse daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels the background loops, waits for them, and releases the
// instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.stopped.Store(true)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.doneOnce.Do(func() { close(d.done) })
	d.logger.Info("glimpse daemon stopped")
}

// Close stops the daemon and releases its stores.
func (d *Daemon) Close() error {
	d.Stop()
	if d.index != nil {
		d.index.Close()
	}
	if d.catalog != nil {
		return d.catalog.Close()
	}
	return nil
}

// Pause suspends capturing and worker dequeuing. Queued frames accumulate
// until Resume; nothing is discarded.
func (d *Daemon) Pause() {
	d.scheduler.Pause()
	d.worker.Pause()
}

// Resume re-enables capturing and worker dequeuing.
func (d *Daemon) Resume() {
	d.scheduler.Resume()
	d.worker.Resume()
}

// Paused reports whether capturing is suspended.
func (d *Daemon) Paused() bool {
	return d.scheduler.Paused()
}

// Stopped reports whether a stop was requested.
func (d *Daemon) Stopped() bool {
	return d.stopped.Load()
}

// Running reports whether the background loops are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the single-instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}
