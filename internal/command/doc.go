// Package command implements the daemon's control channel: a unix socket
// speaking one JSON request and one JSON response per exchange.
//
// Every request carries the shared auth token and an optional strictly
// increasing sequence number; both are checked before any command logic
// runs. Requests decode into a closed set of command variants with a
// catch-all for unrecognized names, so a malformed or unknown command
// yields a structured error instead of a dropped connection.
package command
