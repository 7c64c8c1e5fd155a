package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddOCRResults attaches recognized spans to a screenshot, maintaining the
// text occurrence index. A span whose text already sits at nearly the same
// position on the same screenshot is skipped. Returns (added, skipped).
func (s *Store) AddOCRResults(ctx context.Context, screenshotID int64, results []OCRResult) (int, int, error) {
	ctx = ensureContext(ctx)
	added, skipped := 0, 0

	for _, result := range results {
		textHash := ContentHash([]byte(result.Text))

		if err := s.execWithoutResultRetry(ctx, `
			INSERT INTO text_index (text_hash, text, first_seen, last_seen)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(text_hash) DO UPDATE SET
				last_seen = excluded.last_seen,
				occurrence_count = occurrence_count + 1`,
			textHash, result.Text, s.timestamp(), s.timestamp()); err != nil {
			return added, skipped, fmt.Errorf("update text index: %w", err)
		}

		var existing int64
		err := s.db.QueryRowContext(ctx, `
			SELECT id FROM ocr_results
			WHERE screenshot_id = ? AND text_hash = ?
			AND ABS(box_x1 - ?) < 10 AND ABS(box_y1 - ?) < 10`,
			screenshotID, textHash, result.Box[0][0], result.Box[0][1]).Scan(&existing)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return added, skipped, fmt.Errorf("check duplicate span: %w", err)
		}

		if err := s.execWithoutResultRetry(ctx, `
			INSERT INTO ocr_results (
				screenshot_id, text, text_hash, confidence,
				box_x1, box_y1, box_x2, box_y2,
				box_x3, box_y3, box_x4, box_y4, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			screenshotID, result.Text, textHash, result.Confidence,
			result.Box[0][0], result.Box[0][1], result.Box[1][0], result.Box[1][1],
			result.Box[2][0], result.Box[2][1], result.Box[3][0], result.Box[3][1],
			s.timestamp()); err != nil {
			return added, skipped, fmt.Errorf("insert span: %w", err)
		}
		added++
	}
	return added, skipped, nil
}

// SaveOCRData records a screenshot and its spans in one call. An already
// known content hash yields a duplicate outcome and writes nothing new.
func (s *Store) SaveOCRData(ctx context.Context, ns NewScreenshot, results []OCRResult) (SaveOutcome, error) {
	ctx = ensureContext(ctx)
	id, inserted, err := s.AddScreenshot(ctx, ns)
	if err != nil {
		return SaveOutcome{}, err
	}
	if !inserted {
		return SaveOutcome{
			Status:       StatusDuplicate,
			ScreenshotID: id,
			Skipped:      len(results),
		}, nil
	}
	added, skipped, err := s.AddOCRResults(ctx, id, results)
	if err != nil {
		return SaveOutcome{}, err
	}
	return SaveOutcome{
		Status:       StatusSuccess,
		ScreenshotID: id,
		Added:        added,
		Skipped:      skipped,
	}, nil
}

// OCRResultsByScreenshot returns the spans of one screenshot in reading
// order (top to bottom, then left to right).
func (s *Store) OCRResultsByScreenshot(ctx context.Context, screenshotID int64) ([]OCRResult, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, confidence,
		       box_x1, box_y1, box_x2, box_y2, box_x3, box_y3, box_x4, box_y4
		FROM ocr_results WHERE screenshot_id = ?
		ORDER BY box_y1, box_x1`, screenshotID)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}
	defer rows.Close()

	var results []OCRResult
	for rows.Next() {
		var (
			r          OCRResult
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Text, &confidence,
			&r.Box[0][0], &r.Box[0][1], &r.Box[1][0], &r.Box[1][1],
			&r.Box[2][0], &r.Box[2][1], &r.Box[3][0], &r.Box[3][1]); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		r.Confidence = confidence.Float64
		results = append(results, r)
	}
	return results, rows.Err()
}
