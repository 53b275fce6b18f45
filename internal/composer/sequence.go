package composer

import "sync"

// Sequence hands out a monotonic client sequence number per thread so the
// server can order sends by initiation rather than by resolution.
type Sequence struct {
	mu   sync.Mutex
	next map[string]uint64
}

// NewSequence creates a sequence starting at 1 for every thread.
func NewSequence() *Sequence {
	return &Sequence{next: make(map[string]uint64)}
}

// Next returns the next number for threadID.
func (s *Sequence) Next(threadID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[threadID]++
	return s.next[threadID]
}
