// Package recognize extracts text spans from captured frames.
//
// Recognition runs out of process; the daemon talks to the recognizer over
// a unix socket and treats it as a slow, occasionally unavailable
// dependency. The Serialized wrapper enforces the one-request-at-a-time
// constraint the engine requires.
package recognize
