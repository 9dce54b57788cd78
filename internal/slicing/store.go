package slicing

import (
	"math"
	"sort"
)

// Store is the authoritative set of committed slices. It is not safe for
// concurrent mutation; callers serialize writers (see timeline.Timeline).
type Store struct {
	slices []Slice
}

func NewStore() *Store {
	return &Store{}
}

// TryAdd validates candidate and inserts it. Width is checked before
// overlap; a candidate with a non-finite endpoint has no valid width and is
// refused as too short. On error the store is left untouched.
func (s *Store) TryAdd(candidate Slice) error {
	if !finite(candidate.Start) || !finite(candidate.End) || !(candidate.Duration() >= MinDuration) {
		return ErrTooShort
	}
	for _, existing := range s.slices {
		if existing.Overlaps(candidate) {
			return ErrOverlap
		}
	}
	s.slices = append(s.slices, candidate)
	return nil
}

// RemoveContaining deletes the slice containing point, if any. The
// non-overlap invariant guarantees at most one match.
func (s *Store) RemoveContaining(point float64) (Slice, bool) {
	for i, existing := range s.slices {
		if existing.Contains(point) {
			s.slices = append(s.slices[:i], s.slices[i+1:]...)
			return existing, true
		}
	}
	return Slice{}, false
}

func (s *Store) Query(point float64) (Slice, bool) {
	for _, existing := range s.slices {
		if existing.Contains(point) {
			return existing, true
		}
	}
	return Slice{}, false
}

// All returns a copy of the slices ordered by start time.
func (s *Store) All() []Slice {
	out := make([]Slice, len(s.slices))
	copy(out, s.slices)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (s *Store) Len() int {
	return len(s.slices)
}

// Reset drops every slice. Used when the source asset is replaced.
func (s *Store) Reset() {
	s.slices = nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
