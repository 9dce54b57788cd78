package slicing

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestStore_TryAdd(t *testing.T) {
	tests := []struct {
		name      string
		existing  []Slice
		candidate Slice
		wantErr   error
	}{
		{"empty store", nil, Slice{5, 9}, nil},
		{"exact minimum", nil, Slice{0, 2}, nil},
		{"too short", nil, Slice{6, 6.5}, ErrTooShort},
		{"disjoint", []Slice{{2, 5}}, Slice{6, 9}, nil},
		{"overlap inside", []Slice{{2, 5}}, Slice{3, 8}, ErrOverlap},
		{"touching endpoint", []Slice{{2, 5}}, Slice{5, 9}, ErrOverlap},
		{"covers existing", []Slice{{2, 5}}, Slice{0, 10}, ErrOverlap},
		{"short and overlapping reports short", []Slice{{2, 5}}, Slice{3, 4}, ErrTooShort},
		{"nan bounds", nil, Slice{math.NaN(), math.NaN()}, ErrTooShort},
		{"nan end", nil, Slice{5, math.NaN()}, ErrTooShort},
		{"nan start", []Slice{{2, 5}}, Slice{math.NaN(), 9}, ErrTooShort},
		{"infinite end", nil, Slice{5, math.Inf(1)}, ErrTooShort},
		{"reversed", nil, Slice{9, 3}, ErrTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			for _, e := range tt.existing {
				if err := s.TryAdd(e); err != nil {
					t.Fatalf("seed TryAdd(%v) error = %v", e, err)
				}
			}
			before := s.All()

			err := s.TryAdd(tt.candidate)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("TryAdd(%v) error = %v, want %v", tt.candidate, err, tt.wantErr)
			}

			if tt.wantErr != nil && len(s.All()) != len(before) {
				t.Errorf("store mutated on failure: %v -> %v", before, s.All())
			}
			if tt.wantErr == nil && s.Len() != len(before)+1 {
				t.Errorf("Len() = %d, want %d", s.Len(), len(before)+1)
			}
		})
	}
}

func TestStore_RemoveContaining(t *testing.T) {
	s := NewStore()
	s.TryAdd(Slice{2, 5})
	s.TryAdd(Slice{10, 15})

	if _, ok := s.RemoveContaining(7); ok {
		t.Fatal("RemoveContaining(7) removed a slice, want no-op")
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	got, ok := s.RemoveContaining(15)
	if !ok || got != (Slice{10, 15}) {
		t.Fatalf("RemoveContaining(15) = %v, %v; want {10 15}, true", got, ok)
	}
	if _, ok := s.Query(12); ok {
		t.Error("slice still present after removal")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_AllSortedByStart(t *testing.T) {
	s := NewStore()
	s.TryAdd(Slice{20, 25})
	s.TryAdd(Slice{2, 5})
	s.TryAdd(Slice{10, 15})

	got := s.All()
	want := []Slice{{2, 5}, {10, 15}, {20, 25}}
	if len(got) != len(want) {
		t.Fatalf("All() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("All()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	got[0] = Slice{100, 200}
	if s.All()[0] != (Slice{2, 5}) {
		t.Error("All() leaked internal storage")
	}
}

func TestStore_NonOverlapInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := NewStore()
		n := rapid.IntRange(1, 40).Draw(rt, "ops")
		for i := 0; i < n; i++ {
			if rapid.IntRange(0, 4).Draw(rt, "op") == 0 {
				s.RemoveContaining(rapid.Float64Range(0, 120).Draw(rt, "point"))
				continue
			}
			a := rapid.Float64Range(0, 120).Draw(rt, "a")
			b := rapid.Float64Range(0, 120).Draw(rt, "b")
			s.TryAdd(Span(a, b))
		}

		all := s.All()
		for i := range all {
			if all[i].Duration() < MinDuration {
				rt.Fatalf("slice %v narrower than minimum", all[i])
			}
			for j := i + 1; j < len(all); j++ {
				if all[i].Overlaps(all[j]) {
					rt.Fatalf("slices %v and %v overlap", all[i], all[j])
				}
			}
		}
	})
}

func TestStore_ShortAlwaysRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := NewStore()
		if rapid.Bool().Draw(rt, "seeded") {
			s.TryAdd(Slice{10, 20})
		}
		start := rapid.Float64Range(0, 30).Draw(rt, "start")
		width := rapid.Float64Range(0, 1.999).Draw(rt, "width")

		if err := s.TryAdd(Slice{start, start + width}); !errors.Is(err, ErrTooShort) {
			rt.Fatalf("TryAdd width %.3f error = %v, want ErrTooShort", width, err)
		}
	})
}
