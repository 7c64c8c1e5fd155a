// Package storagesvc is the client for the external encrypted storage
// service that owns screenshot image files.
//
// The service speaks one JSON request and response per unix socket
// connection. Persistence is a two-phase handshake: a frame is staged with
// save_screenshot_temp, then either committed together with its text spans
// or aborted so the service can discard the pending file. The single-shot
// save_screenshot path remains for frames that were never staged.
//
// The client also proxies the service's encryption of index text, caching
// recent results because the same strings recur heavily across frames.
package storagesvc
