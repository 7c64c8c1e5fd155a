package daemon

import (
	"context"
	"time"

	"glimpse/internal/logging"
)

const defaultSweepInterval = time.Hour

func (d *Daemon) sweepInterval() time.Duration {
	interval := time.Duration(d.cfg.Retention.SweepInterval) * time.Second
	if interval <= 0 {
		return defaultSweepInterval
	}
	return interval
}

func (d *Daemon) retentionLoop(ctx context.Context) {
	interval := d.sweepInterval()
	d.logger.Info("retention sweep scheduled",
		logging.Int("retention_days", d.cfg.Retention.Days),
		logging.Duration("sweep_interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// sweep deletes catalog rows older than the retention window, then cleans
// their index entries one id at a time so a single index failure never
// blocks the rest.
func (d *Daemon) sweep(ctx context.Context) {
	days := d.cfg.Retention.Days
	if days <= 0 {
		return
	}

	cutoff := float64(time.Now().AddDate(0, 0, -days).Unix())
	var staleIDs []int64
	if d.index != nil {
		entries, err := d.catalog.Timeline(ctx, 0, cutoff)
		if err != nil {
			d.logger.Warn("retention sweep: list stale rows failed", logging.Error(err))
		} else {
			for _, entry := range entries {
				staleIDs = append(staleIDs, entry.ID)
			}
		}
	}

	screenshots, indexRows, err := d.catalog.CleanupOldData(ctx, days)
	if err != nil {
		d.logger.Warn("retention sweep failed", logging.Error(err))
		return
	}
	if screenshots == 0 && indexRows == 0 {
		return
	}

	vectorDeleted := 0
	for _, id := range staleIDs {
		if err := d.index.DeleteByScreenshotIDs(ctx, []int64{id}); err != nil {
			d.logger.Warn("retention sweep: index delete failed",
				logging.Error(err),
				logging.Int64(logging.FieldScreenshotID, id))
			continue
		}
		vectorDeleted++
	}

	d.logger.Info("retention sweep completed",
		logging.Int64("screenshots_deleted", screenshots),
		logging.Int64("index_rows_pruned", indexRows),
		logging.Int("vector_entries_deleted", vectorDeleted))
}
