package command

import (
	"crypto/subtle"
	"fmt"
	"sync"
)

// AuthSession verifies the shared token and replay-protection sequence for
// every inbound request. All connections share one session; the
// check-then-advance on the sequence number is atomic under the mutex so
// two concurrent requests can never both pass with the same number.
type AuthSession struct {
	mu      sync.Mutex
	token   string
	lastSeq int64
}

// NewAuthSession returns a session for the configured token. An empty
// token disables the token check but not the sequence check.
func NewAuthSession(token string) *AuthSession {
	return &AuthSession{token: token, lastSeq: -1}
}

// Verify checks the request credentials and, on success, advances the
// accepted sequence number before the command runs. seq is nil when the
// request carried no sequence number.
func (a *AuthSession) Verify(token string, seq *int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
		return fmt.Errorf("%w: invalid token", ErrAuth)
	}
	if seq != nil {
		if *seq <= a.lastSeq {
			return fmt.Errorf("%w: invalid sequence number (got %d, expected > %d)", ErrAuth, *seq, a.lastSeq)
		}
		a.lastSeq = *seq
	}
	return nil
}

// LastSequence returns the highest accepted sequence number, -1 before any.
func (a *AuthSession) LastSequence() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeq
}
