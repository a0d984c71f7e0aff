// Package conflict accumulates the key ranges a transaction has read.
// The set is handed to the commit path for conflict checking; the read
// engine only ever inserts into it.
package conflict

import (
	"bytes"
	"sync"
)

// Range is a half-open key range [Begin, End).
type Range struct {
	Begin []byte
	End   []byte
}

// Contains reports whether key falls inside the range.
func (r Range) Contains(key []byte) bool {
	return bytes.Compare(r.Begin, key) <= 0 && bytes.Compare(key, r.End) < 0
}

// Successor returns the smallest key strictly greater than key under
// lexicographic byte ordering.
func Successor(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}

// Set is a mutex-protected collection of read conflict ranges. Overlapping
// and duplicate entries are allowed to accumulate; merging them is left to
// the consumer.
type Set struct {
	mu     sync.Mutex
	ranges []Range
}

// AddRange records [begin, end) unless the view is a snapshot or the range
// is empty. It reports whether the range was recorded. The keys are copied;
// callers may reuse their buffers.
func (s *Set) AddRange(begin, end []byte, snapshot bool) bool {
	if snapshot || bytes.Compare(begin, end) >= 0 {
		return false
	}

	r := Range{
		Begin: append([]byte(nil), begin...),
		End:   append([]byte(nil), end...),
	}

	s.mu.Lock()
	s.ranges = append(s.ranges, r)
	s.mu.Unlock()

	return true
}

// AddKey records the single-key range [key, successor(key)).
func (s *Set) AddKey(key []byte, snapshot bool) bool {
	return s.AddRange(key, Successor(key), snapshot)
}

// Len returns the number of recorded ranges.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ranges)
}

// Ranges returns a copy of the recorded ranges, in insertion order.
func (s *Set) Ranges() []Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Range(nil), s.ranges...)
}

// Covers reports whether any recorded range contains key.
func (s *Set) Covers(key []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.ranges {
		if r.Contains(key) {
			return true
		}
	}
	return false
}
