package pipeline

import (
	"sync"

	"glimpse/internal/capture"
)

// Queue is an unbounded FIFO of captured frames. Capture must never block
// on a slow recognizer, so the queue grows instead of applying
// backpressure here; the scheduler throttles itself via Pending.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*capture.Frame
	paused bool
	closed bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a frame. Pushing to a closed queue drops the frame.
func (q *Queue) Push(frame *capture.Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, frame)
	q.cond.Signal()
}

// Pop blocks until a frame is available or the queue closes. While the
// queue is paused, Pop blocks even when frames are queued. The second
// return is false once the queue is closed and drained.
func (q *Queue) Pop() (*capture.Frame, bool) {
	return q.PopAndMark(nil)
}

// PopAndMark is Pop plus a callback invoked under the queue lock when a
// frame is dequeued. Callers that track in-flight work use it so a frame
// is never absent from both the queue length and their own counter.
func (q *Queue) PopAndMark(mark func()) (*capture.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for (len(q.items) == 0 || q.paused) && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	frame := q.items[0]
	q.items = q.items[1:]
	if mark != nil {
		mark()
	}
	return frame, true
}

// SetPaused gates Pop. Pushed frames accumulate while paused; nothing is
// discarded. A closed queue still drains regardless of the pause state so
// shutdown never deadlocks.
func (q *Queue) SetPaused(paused bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused == paused {
		return
	}
	q.paused = paused
	q.cond.Broadcast()
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// QueuedBytes sums the encoded size of all queued frames.
func (q *Queue) QueuedBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, frame := range q.items {
		total += len(frame.Data)
	}
	return total
}

// Close wakes all waiters; queued frames may still be popped, after which
// Pop reports closed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
