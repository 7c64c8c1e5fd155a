package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"glimpse/internal/logging"
	"glimpse/internal/storagesvc"
)

// ocrExcerptLimit caps how much recognized text is embedded and stored per
// frame; beyond this the extra text adds noise, not recall.
const ocrExcerptLimit = 2000

// PostgresIndex implements Index on PostgreSQL with pgvector.
type PostgresIndex struct {
	pool       *pgxpool.Pool
	collection string
	encoder    Encoder
	crypto     storagesvc.Encryptor
	logger     *slog.Logger
}

// Open connects to PostgreSQL, ensures the schema, and returns the index.
// crypto may be nil, in which case text fields are stored as-is; this is
// only acceptable in tests.
func Open(ctx context.Context, dsn, collection string, encoder Encoder, crypto storagesvc.Encryptor, logger *slog.Logger) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect vector index: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping vector index: %w", err)
	}

	idx := &PostgresIndex{
		pool:       pool,
		collection: collection,
		encoder:    encoder,
		crypto:     crypto,
		logger:     logging.WithComponent(logger, "vectorindex"),
	}
	if err := idx.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *PostgresIndex) initSchema(ctx context.Context) error {
	if _, err := idx.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := idx.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS screenshot_vectors (
			id BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			screenshot_id BIGINT NOT NULL,
			image_path TEXT NOT NULL,
			window_title TEXT,
			process_name TEXT,
			ocr_excerpt TEXT,
			text_count INTEGER,
			width INTEGER,
			height INTEGER,
			created_at TIMESTAMPTZ NOT NULL,
			embedding vector(512)
		);
		CREATE INDEX IF NOT EXISTS idx_vectors_collection ON screenshot_vectors(collection);
		CREATE INDEX IF NOT EXISTS idx_vectors_screenshot ON screenshot_vectors(screenshot_id);
	`)
	if err != nil {
		return fmt.Errorf("create vector schema: %w", err)
	}
	return nil
}

// Close implements Index.
func (idx *PostgresIndex) Close() {
	if idx.pool != nil {
		idx.pool.Close()
	}
}

// embeddingText builds the string that is embedded for an entry: title,
// process, and a bounded slice of the recognized text.
func embeddingText(entry Entry) string {
	text := entry.OCRText
	if len(text) > ocrExcerptLimit {
		text = text[:ocrExcerptLimit]
	}
	return entry.WindowTitle + " " + entry.ProcessName + " " + text
}

func (idx *PostgresIndex) seal(ctx context.Context, plaintext string) (string, error) {
	if idx.crypto == nil || plaintext == "" {
		return plaintext, nil
	}
	return idx.crypto.Encrypt(ctx, plaintext)
}

func (idx *PostgresIndex) open(ctx context.Context, sealed string) string {
	if idx.crypto == nil || sealed == "" {
		return sealed
	}
	plain, err := idx.crypto.Decrypt(ctx, sealed)
	if err != nil {
		idx.logger.Warn("decrypt index field failed", logging.Error(err))
		return ""
	}
	return plain
}

// Add implements Index.
func (idx *PostgresIndex) Add(ctx context.Context, entry Entry) (int64, error) {
	embedding, err := idx.encoder.EncodeText(ctx, embeddingText(entry))
	if err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}

	excerpt := entry.OCRText
	if len(excerpt) > ocrExcerptLimit {
		excerpt = excerpt[:ocrExcerptLimit]
	}
	title, err := idx.seal(ctx, entry.WindowTitle)
	if err != nil {
		return 0, fmt.Errorf("seal window title: %w", err)
	}
	process, err := idx.seal(ctx, entry.ProcessName)
	if err != nil {
		return 0, fmt.Errorf("seal process name: %w", err)
	}
	sealedExcerpt, err := idx.seal(ctx, excerpt)
	if err != nil {
		return 0, fmt.Errorf("seal excerpt: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err = idx.pool.QueryRow(ctx, `
		INSERT INTO screenshot_vectors
			(collection, screenshot_id, image_path, window_title, process_name,
			 ocr_excerpt, text_count, width, height, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		idx.collection, entry.ScreenshotID, entry.ImagePath, title, process,
		sealedExcerpt, entry.TextCount, entry.Width, entry.Height, createdAt,
		pgvector.NewVector(embedding)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert vector entry: %w", err)
	}
	return id, nil
}

// Search implements Index.
func (idx *PostgresIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	embedding, err := idx.encoder.EncodeText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	rows, err := idx.pool.Query(ctx, `
		SELECT id, screenshot_id, image_path, window_title, process_name,
		       to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD HH24:MI:SS'),
		       1 - (embedding <=> $1) AS score
		FROM screenshot_vectors
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(embedding), idx.collection, limit)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit            Hit
			title, process *string
		)
		if err := rows.Scan(&hit.ID, &hit.ScreenshotID, &hit.ImagePath, &title, &process, &hit.CreatedAt, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		if title != nil {
			hit.WindowTitle = idx.open(ctx, *title)
		}
		if process != nil {
			hit.ProcessName = idx.open(ctx, *process)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// DeleteByScreenshotIDs implements Index.
func (idx *PostgresIndex) DeleteByScreenshotIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := idx.pool.Exec(ctx, `
		DELETE FROM screenshot_vectors
		WHERE collection = $1 AND screenshot_id = ANY($2)`,
		idx.collection, ids)
	if err != nil {
		return fmt.Errorf("delete vector entries: %w", err)
	}
	return nil
}
