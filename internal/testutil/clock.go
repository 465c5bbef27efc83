package testutil

import (
	"strconv"
	"sync"
	"time"
)

// FixtureTime is the wall clock seen by fixture parsers, so bare time
// filter operands resolve the same on every run.
var FixtureTime = time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)

// FixedClock returns a clock that always reports at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// Sequence hands out monotonically increasing request ids for tests.
//
// Thread-safety: all methods are safe for concurrent use.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequence creates a sequence whose first id is prefix + "1".
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next id.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.prefix + strconv.FormatInt(s.seq, 10)
}

// Current returns the number of ids handed out.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset restarts the sequence at 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
