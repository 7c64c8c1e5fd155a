// Package daemon ties the capture scheduler, processing pipeline, control
// channel dependencies, and retention sweep into one lifecycle. A file
// lock enforces single-instance execution per data directory.
package daemon
