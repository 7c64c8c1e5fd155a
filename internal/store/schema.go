package store

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS screenshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    image_path TEXT NOT NULL,
    image_hash TEXT UNIQUE NOT NULL,
    width INTEGER,
    height INTEGER,
    window_title TEXT,
    process_name TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    metadata TEXT
);

CREATE TABLE IF NOT EXISTS ocr_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    screenshot_id INTEGER NOT NULL,
    text TEXT NOT NULL,
    text_hash TEXT NOT NULL,
    confidence REAL,
    box_x1 REAL, box_y1 REAL,
    box_x2 REAL, box_y2 REAL,
    box_x3 REAL, box_y3 REAL,
    box_x4 REAL, box_y4 REAL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (screenshot_id) REFERENCES screenshots(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS text_index (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text_hash TEXT UNIQUE NOT NULL,
    text TEXT NOT NULL,
    first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    occurrence_count INTEGER DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_image_hash ON screenshots(image_hash);
CREATE INDEX IF NOT EXISTS idx_text_hash ON ocr_results(text_hash);
CREATE INDEX IF NOT EXISTS idx_screenshot_id ON ocr_results(screenshot_id);
CREATE INDEX IF NOT EXISTS idx_text_content ON text_index(text);
`

func (s *Store) initSchema(ctx context.Context) error {
	return s.execWithoutResultRetry(ctx, schema)
}
