// Package store persists screenshot records and recognized text in SQLite.
//
// It is the daemon's local catalog: image bytes live with the external
// storage service, while this database holds the searchable metadata,
// per-span text rows, and the occurrence index that powers relevance
// ranking and statistics.
//
// Timestamps are stored as UTC "YYYY-MM-DD HH:MM:SS" text, matching
// SQLite's CURRENT_TIMESTAMP format, and converted at the query boundary.
package store
