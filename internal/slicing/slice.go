// Package slicing holds the slice interval model: the committed interval
// store and the session state machine that feeds it.
package slicing

import (
	"errors"
	"fmt"
)

// MinDuration is the narrowest slice the store accepts, in seconds.
const MinDuration = 2.0

var (
	ErrTooShort   = errors.New("slices must be at least 2 seconds apart")
	ErrOverlap    = errors.New("slices cannot have overlaps with each other")
	ErrNotSlicing = errors.New("no slice in progress")
)

// Slice is a closed interval of the source timeline, in seconds.
// Slices have no identity beyond their bounds.
type Slice struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Slice) Duration() float64 {
	return s.End - s.Start
}

// Contains reports whether point lies inside s, bounds included.
func (s Slice) Contains(point float64) bool {
	return s.Start <= point && point <= s.End
}

// Overlaps uses the closed-interval test, so touching endpoints overlap.
func (s Slice) Overlaps(o Slice) bool {
	return s.Start <= o.End && o.Start <= s.End
}

func (s Slice) String() string {
	return fmt.Sprintf("%s to %s", FormatTime(s.Start), FormatTime(s.End))
}

// Span builds the candidate covering a and b in either order.
func Span(a, b float64) Slice {
	if b < a {
		a, b = b, a
	}
	return Slice{Start: a, End: b}
}
