package digest

import "sync"

// Set is an insertion-ordered, append-only set of digests. It is safe for
// concurrent use.
type Set struct {
	mu    sync.RWMutex
	order []Digest
	index map[Digest]struct{}
}

// NewSet returns a set seeded with ds, in order, skipping duplicates.
func NewSet(ds ...Digest) *Set {
	s := &Set{index: make(map[Digest]struct{}, len(ds))}
	for _, d := range ds {
		s.Add(d)
	}
	return s
}

// Add appends d and reports whether it was new.
func (s *Set) Add(d Digest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		s.index = make(map[Digest]struct{})
	}
	if _, ok := s.index[d]; ok {
		return false
	}
	s.index[d] = struct{}{}
	s.order = append(s.order, d)
	return true
}

// Contains reports whether d was added.
func (s *Set) Contains(d Digest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[d]
	return ok
}

// List returns a copy of the digests in insertion order.
func (s *Set) List() []Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Digest, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of digests.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
