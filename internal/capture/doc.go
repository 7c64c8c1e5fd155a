// Package capture decides when the active window is worth recording.
//
// The Scheduler polls the platform window inspector on a fast cadence,
// applies the exclusion policy and the perceptual-hash redundancy check,
// and hands surviving frames to the processing pipeline. Platform
// introspection and pixel grabbing are consumed through the Inspector and
// Grabber interfaces; implementations live outside this package.
//
// Exclusion settings are persisted to disk and swapped atomically so the
// poll loop never observes a half-applied filter update.
package capture
