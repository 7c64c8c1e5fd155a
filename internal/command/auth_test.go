package command

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func seqPtr(v int64) *int64 { return &v }

func TestAuthSessionTokenMismatch(t *testing.T) {
	auth := NewAuthSession("secret")
	if err := auth.Verify("wrong", nil); !errors.Is(err, ErrAuth) {
		t.Errorf("Verify(wrong token) = %v, want ErrAuth", err)
	}
	if err := auth.Verify("secret", nil); err != nil {
		t.Errorf("Verify(correct token) = %v", err)
	}
}

func TestAuthSessionEmptyTokenAcceptsAnything(t *testing.T) {
	auth := NewAuthSession("")
	if err := auth.Verify("whatever", nil); err != nil {
		t.Errorf("Verify with no configured token = %v", err)
	}
}

func TestAuthSessionSequenceMonotonic(t *testing.T) {
	auth := NewAuthSession("secret")

	if err := auth.Verify("secret", seqPtr(1)); err != nil {
		t.Fatalf("Verify(seq 1) = %v", err)
	}
	if err := auth.Verify("secret", seqPtr(5)); err != nil {
		t.Fatalf("Verify(seq 5) = %v", err)
	}
	if err := auth.Verify("secret", seqPtr(5)); !errors.Is(err, ErrAuth) {
		t.Errorf("Verify(replayed seq 5) = %v, want ErrAuth", err)
	}
	if err := auth.Verify("secret", seqPtr(3)); !errors.Is(err, ErrAuth) {
		t.Errorf("Verify(stale seq 3) = %v, want ErrAuth", err)
	}
	if got := auth.LastSequence(); got != 5 {
		t.Errorf("LastSequence after rejections = %d, want 5", got)
	}
	if err := auth.Verify("secret", seqPtr(6)); err != nil {
		t.Errorf("Verify(seq 6) = %v", err)
	}
}

func TestAuthSessionOmittedSequenceAlwaysPasses(t *testing.T) {
	auth := NewAuthSession("secret")
	if err := auth.Verify("secret", seqPtr(10)); err != nil {
		t.Fatalf("Verify(seq 10) = %v", err)
	}
	if err := auth.Verify("secret", nil); err != nil {
		t.Errorf("Verify without sequence = %v", err)
	}
	if got := auth.LastSequence(); got != 10 {
		t.Errorf("LastSequence = %d, want 10 (nil must not advance)", got)
	}
}

func TestAuthSessionReplayProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		auth := NewAuthSession("secret")
		max := int64(-1)
		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			seq := rapid.Int64Range(-5, 40).Draw(t, "seq")
			err := auth.Verify("secret", &seq)
			if seq > max {
				if err != nil {
					t.Fatalf("seq %d > max %d rejected: %v", seq, max, err)
				}
				max = seq
			} else if !errors.Is(err, ErrAuth) {
				t.Fatalf("seq %d <= max %d accepted", seq, max)
			}
			if got := auth.LastSequence(); got != max {
				t.Fatalf("LastSequence = %d, want %d", got, max)
			}
		}
	})
}
