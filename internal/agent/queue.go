package agent

import "sync"

// InputQueue is a single-slot buffer for follow-up input that arrives while a
// run is in flight. The agent process is spawned with its input channel
// closed, so mid-run user intent cannot be piped in; it is held here and
// resubmitted as a new run that resumes the same external session.
//
// The slot holds at most one message: a second Offer overwrites the first,
// since only the most recent user intent matters.
type InputQueue struct {
	mu      sync.Mutex
	pending string
	set     bool
}

// Offer stores text as the pending follow-up, replacing any previous value.
func (q *InputQueue) Offer(text string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = text
	q.set = true
}

// Take atomically returns and clears the pending value. The second return is
// false when the slot is empty.
func (q *InputQueue) Take() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.set {
		return "", false
	}
	text := q.pending
	q.pending = ""
	q.set = false
	return text, true
}
