package capture

// History keeps the perceptual hashes of recently accepted frames and
// answers whether a candidate frame is redundant against any of them.
// It is not safe for concurrent use; the scheduler owns it.
type History struct {
	hashes []Hash
	limit  int
}

// NewHistory returns a history retaining at most limit hashes. A limit
// below one keeps a single entry.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

// Redundant reports whether hash is strictly closer than threshold in
// Hamming distance to any retained hash. A distance equal to the
// threshold is not redundant.
func (h *History) Redundant(hash Hash, threshold int) bool {
	for _, prev := range h.hashes {
		if hash.Distance(prev) < threshold {
			return true
		}
	}
	return false
}

// Add records an accepted frame's hash, evicting the oldest entry when
// the history is full.
func (h *History) Add(hash Hash) {
	if len(h.hashes) >= h.limit {
		h.hashes = h.hashes[1:]
	}
	h.hashes = append(h.hashes, hash)
}

// Len returns the number of retained hashes.
func (h *History) Len() int {
	return len(h.hashes)
}
