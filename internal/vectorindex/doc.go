// Package vectorindex maintains the semantic search index for captured
// frames in PostgreSQL with the pgvector extension.
//
// Each committed frame is embedded through an Encoder and stored with its
// catalog metadata. Text fields pass through the storage service's
// encryption before leaving the process, so the index never holds window
// titles or recognized text in the clear. The index is best-effort: the
// pipeline treats failures here as log-worthy, not fatal.
package vectorindex
