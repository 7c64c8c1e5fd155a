package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DeleteScreenshot removes a screenshot and, via cascade, its spans.
// The recorded image path is returned so the caller can release the image
// itself; deleted is false when no such row existed.
func (s *Store) DeleteScreenshot(ctx context.Context, id int64) (imagePath string, deleted bool, err error) {
	ctx = ensureContext(ctx)
	err = s.db.QueryRowContext(ctx, `SELECT image_path FROM screenshots WHERE id = ?`, id).Scan(&imagePath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup screenshot path: %w", err)
	}

	res, err := s.execWithRetry(ctx, `DELETE FROM screenshots WHERE id = ?`, id)
	if err != nil {
		return "", false, fmt.Errorf("delete screenshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("delete screenshot result: %w", err)
	}
	return imagePath, affected > 0, nil
}

// DeleteByTimeRange removes screenshots created between startMs and endMs
// (unix milliseconds) and returns the count plus the image paths of the
// removed rows.
func (s *Store) DeleteByTimeRange(ctx context.Context, startMs, endMs float64) (int, []string, error) {
	ctx = ensureContext(ctx)
	start := epochToTimestamp(startMs / 1000.0)
	end := epochToTimestamp(endMs / 1000.0)

	rows, err := s.db.QueryContext(ctx,
		`SELECT image_path FROM screenshots WHERE created_at BETWEEN ? AND ?`, start, end)
	if err != nil {
		return 0, nil, fmt.Errorf("query range paths: %w", err)
	}
	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, nil, fmt.Errorf("scan range path: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, nil, err
	}
	rows.Close()

	res, err := s.execWithRetry(ctx,
		`DELETE FROM screenshots WHERE created_at BETWEEN ? AND ?`, start, end)
	if err != nil {
		return 0, nil, fmt.Errorf("delete range: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil, fmt.Errorf("delete range result: %w", err)
	}
	return int(affected), paths, nil
}

// CleanupOldData removes screenshots older than the retention window and
// prunes index texts no span references anymore. Returns the deleted
// screenshot and index row counts.
func (s *Store) CleanupOldData(ctx context.Context, days int) (int64, int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		`DELETE FROM screenshots WHERE created_at < datetime('now', ? || ' days')`,
		fmt.Sprintf("-%d", days))
	if err != nil {
		return 0, 0, fmt.Errorf("delete old screenshots: %w", err)
	}
	shots, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("delete old screenshots result: %w", err)
	}

	res, err = s.execWithRetry(ctx,
		`DELETE FROM text_index WHERE text_hash NOT IN (SELECT DISTINCT text_hash FROM ocr_results)`)
	if err != nil {
		return shots, 0, fmt.Errorf("prune text index: %w", err)
	}
	indices, err := res.RowsAffected()
	if err != nil {
		return shots, 0, fmt.Errorf("prune text index result: %w", err)
	}
	return shots, indices, nil
}

// Statistics summarizes catalog contents, including the ten most frequent
// indexed texts.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	ctx = ensureContext(ctx)
	var stats Statistics

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM screenshots`, &stats.ScreenshotCount},
		{`SELECT COUNT(*) FROM ocr_results`, &stats.OCRResultCount},
		{`SELECT COUNT(*) FROM text_index`, &stats.UniqueTextCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Statistics{}, fmt.Errorf("count rows: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT text, occurrence_count
		FROM text_index
		ORDER BY occurrence_count DESC
		LIMIT 10`)
	if err != nil {
		return Statistics{}, fmt.Errorf("query frequent texts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc TextCount
		if err := rows.Scan(&tc.Text, &tc.Count); err != nil {
			return Statistics{}, fmt.Errorf("scan frequent text: %w", err)
		}
		stats.FrequentTexts = append(stats.FrequentTexts, tc)
	}
	return stats, rows.Err()
}
