package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Exists reports whether a screenshot with the content hash is recorded.
func (s *Store) Exists(ctx context.Context, imageHash string) (bool, error) {
	ctx = ensureContext(ctx)
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM screenshots WHERE image_hash = ?`, imageHash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check screenshot exists: %w", err)
	}
	return true, nil
}

// AddScreenshot inserts a screenshot row. A duplicate content hash returns
// the existing row's id with inserted=false.
func (s *Store) AddScreenshot(ctx context.Context, ns NewScreenshot) (id int64, inserted bool, err error) {
	ctx = ensureContext(ctx)
	if existingID, err := s.idByHash(ctx, ns.ImageHash); err == nil {
		return existingID, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return 0, false, err
	}

	var metadata any
	if ns.Metadata != "" {
		metadata = ns.Metadata
	}
	res, err := s.execWithRetry(ctx, `
		INSERT INTO screenshots (image_path, image_hash, width, height, window_title, process_name, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ns.ImagePath, ns.ImageHash, ns.Width, ns.Height, ns.WindowTitle, ns.ProcessName, s.timestamp(), metadata)
	if err != nil {
		return 0, false, fmt.Errorf("insert screenshot: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("screenshot insert id: %w", err)
	}
	return id, true, nil
}

func (s *Store) idByHash(ctx context.Context, imageHash string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM screenshots WHERE image_hash = ?`, imageHash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup screenshot by hash: %w", err)
	}
	return id, nil
}

const screenshotColumns = `id, image_path, image_hash, width, height, window_title, process_name, created_at, metadata`

func scanScreenshot(row interface{ Scan(...any) error }) (Screenshot, error) {
	var (
		shot     Screenshot
		width    sql.NullInt64
		height   sql.NullInt64
		title    sql.NullString
		process  sql.NullString
		metadata sql.NullString
	)
	err := row.Scan(&shot.ID, &shot.ImagePath, &shot.ImageHash, &width, &height, &title, &process, &shot.CreatedAt, &metadata)
	if err != nil {
		return Screenshot{}, err
	}
	shot.Width = int(width.Int64)
	shot.Height = int(height.Int64)
	shot.WindowTitle = title.String
	shot.ProcessName = process.String
	shot.Metadata = metadata.String
	return shot, nil
}

// ScreenshotByID returns the screenshot row for id, or ErrNotFound.
func (s *Store) ScreenshotByID(ctx context.Context, id int64) (Screenshot, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE id = ?`, id)
	shot, err := scanScreenshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Screenshot{}, ErrNotFound
	}
	if err != nil {
		return Screenshot{}, fmt.Errorf("screenshot by id: %w", err)
	}
	return shot, nil
}

// ScreenshotByPath resolves a screenshot by exact path first, then by base
// name, tolerating the mixed separators that show up in recorded paths.
func (s *Store) ScreenshotByPath(ctx context.Context, imagePath string) (Screenshot, error) {
	ctx = ensureContext(ctx)
	normalized := strings.ReplaceAll(filepath.Clean(imagePath), `\`, "/")

	row := s.db.QueryRowContext(ctx,
		`SELECT `+screenshotColumns+` FROM screenshots WHERE replace(image_path, '\', '/') = ?`, normalized)
	shot, err := scanScreenshot(row)
	if err == nil {
		return shot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Screenshot{}, fmt.Errorf("screenshot by path: %w", err)
	}

	base := normalized
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		base = normalized[idx+1:]
	}
	row = s.db.QueryRowContext(ctx,
		`SELECT `+screenshotColumns+` FROM screenshots WHERE image_path LIKE ?`, "%"+base)
	shot, err = scanScreenshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Screenshot{}, ErrNotFound
	}
	if err != nil {
		return Screenshot{}, fmt.Errorf("screenshot by base name: %w", err)
	}
	return shot, nil
}

// Timeline returns screenshots created between startSec and endSec (unix
// seconds), oldest first.
func (s *Store) Timeline(ctx context.Context, startSec, endSec float64) ([]TimelineEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_path, window_title, process_name,
		       CAST(strftime('%s', created_at) AS INTEGER) AS timestamp,
		       width, height, metadata
		FROM screenshots
		WHERE created_at BETWEEN ? AND ?
		ORDER BY created_at ASC`,
		epochToTimestamp(startSec), epochToTimestamp(endSec))
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		var (
			entry    TimelineEntry
			title    sql.NullString
			process  sql.NullString
			width    sql.NullInt64
			height   sql.NullInt64
			metadata sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.ImagePath, &title, &process, &entry.Timestamp, &width, &height, &metadata); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		entry.WindowTitle = title.String
		entry.ProcessName = process.String
		entry.Width = int(width.Int64)
		entry.Height = int(height.Int64)
		entry.Metadata = metadata.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RecentScreenshots returns the newest screenshots with their span counts.
func (s *Store) RecentScreenshots(ctx context.Context, limit int) ([]RecentScreenshot, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.image_path, s.window_title, s.width, s.height, COUNT(r.id) AS text_count, s.created_at
		FROM screenshots s
		LEFT JOIN ocr_results r ON s.id = r.screenshot_id
		GROUP BY s.id
		ORDER BY s.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent screenshots: %w", err)
	}
	defer rows.Close()

	var shots []RecentScreenshot
	for rows.Next() {
		var (
			shot   RecentScreenshot
			title  sql.NullString
			width  sql.NullInt64
			height sql.NullInt64
		)
		if err := rows.Scan(&shot.ID, &shot.ImagePath, &title, &width, &height, &shot.TextCount, &shot.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent screenshot: %w", err)
		}
		shot.WindowTitle = title.String
		shot.Width = int(width.Int64)
		shot.Height = int(height.Int64)
		shots = append(shots, shot)
	}
	return shots, rows.Err()
}

// ListProcesses returns distinct process names with screenshot counts,
// most frequent first. A non-positive limit returns all.
func (s *Store) ListProcesses(ctx context.Context, limit int) ([]ProcessCount, error) {
	ctx = ensureContext(ctx)
	query := `
		SELECT process_name, COUNT(*) AS count
		FROM screenshots
		WHERE process_name IS NOT NULL AND TRIM(process_name) != ''
		GROUP BY process_name
		ORDER BY count DESC, process_name COLLATE NOCASE ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processes: %w", err)
	}
	defer rows.Close()

	var counts []ProcessCount
	for rows.Next() {
		var pc ProcessCount
		if err := rows.Scan(&pc.ProcessName, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan process count: %w", err)
		}
		counts = append(counts, pc)
	}
	return counts, rows.Err()
}
