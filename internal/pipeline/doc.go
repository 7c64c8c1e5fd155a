// Package pipeline turns captured frames into committed, searchable
// records.
//
// Frames enter an unbounded FIFO queue and a single worker drains it:
// stage the frame with the storage service, recognize its text, then
// commit or abort. A frame that was staged but cannot be committed is
// aborted exactly once so the service never accumulates pending files.
// The worker's pending count (queued plus in flight) feeds back into the
// capture scheduler's focus-change gating.
package pipeline
