package capture

import "testing"

func TestHistoryRedundant(t *testing.T) {
	h := NewHistory(3)
	var base Hash
	base[0] = 0xff

	if h.Redundant(base, 10) {
		t.Fatal("empty history should never be redundant")
	}
	h.Add(base)

	near := base
	near[1] = 0b111 // distance 3
	if !h.Redundant(near, 10) {
		t.Error("hash within threshold should be redundant")
	}

	far := base
	far[2] = ^uint64(0) // distance 64
	if h.Redundant(far, 10) {
		t.Error("hash beyond threshold should not be redundant")
	}
}

func TestHistoryThresholdIsStrict(t *testing.T) {
	h := NewHistory(3)
	var base Hash
	h.Add(base)

	atThreshold := base
	atThreshold[1] = 0x3ff // distance 10
	if h.Redundant(atThreshold, 10) {
		t.Error("distance equal to threshold must not be redundant")
	}

	beyond := base
	beyond[1] = 0x7ff // distance 11
	if h.Redundant(beyond, 10) {
		t.Error("distance beyond threshold must not be redundant")
	}

	inside := base
	inside[1] = 0x1ff // distance 9
	if !h.Redundant(inside, 10) {
		t.Error("distance below threshold must be redundant")
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	hashes := make([]Hash, 4)
	for i := range hashes {
		hashes[i][0] = ^uint64(0) << uint(i*16)
		h.Add(hashes[i])
	}
	if h.Len() != 3 {
		t.Fatalf("history length = %d, want 3", h.Len())
	}
	if h.Redundant(hashes[0], 1) {
		t.Error("oldest hash should have been evicted")
	}
	for _, kept := range hashes[1:] {
		if !h.Redundant(kept, 1) {
			t.Errorf("hash %v should still be retained", kept)
		}
	}
}

func TestHistoryMinimumLimit(t *testing.T) {
	h := NewHistory(0)
	h.Add(Hash{1})
	h.Add(Hash{2})
	if h.Len() != 1 {
		t.Errorf("history length = %d, want 1", h.Len())
	}
}
