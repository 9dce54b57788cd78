package slicing

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestSession_BeginCommit(t *testing.T) {
	store := NewStore()
	sess := NewSession(store)

	if !sess.Begin(5.0) {
		t.Fatal("Begin(5.0) refused on empty store")
	}
	got, err := sess.Commit(9.0)
	if err != nil {
		t.Fatalf("Commit(9.0) error = %v", err)
	}
	if got != (Slice{5, 9}) {
		t.Errorf("Commit(9.0) = %v, want {5 9}", got)
	}
	if _, idle := sess.State().(Idle); !idle {
		t.Errorf("State() = %#v, want Idle", sess.State())
	}
	all := store.All()
	if len(all) != 1 || all[0] != (Slice{5, 9}) {
		t.Errorf("store = %v, want [{5 9}]", all)
	}
}

func TestSession_CommitBeforeStart(t *testing.T) {
	store := NewStore()
	sess := NewSession(store)

	sess.Begin(12)
	got, err := sess.Commit(4)
	if err != nil {
		t.Fatalf("Commit(4) error = %v", err)
	}
	if got != (Slice{4, 12}) {
		t.Errorf("Commit(4) = %v, want {4 12}", got)
	}
}

func TestSession_BeginInsideSliceRefused(t *testing.T) {
	store := NewStore()
	store.TryAdd(Slice{2, 5})
	sess := NewSession(store)

	if sess.Begin(4.0) {
		t.Fatal("Begin(4.0) accepted inside {2 5}")
	}
	if _, idle := sess.State().(Idle); !idle {
		t.Errorf("State() = %#v, want Idle", sess.State())
	}
}

func TestSession_BeginWhileActiveRefused(t *testing.T) {
	sess := NewSession(NewStore())
	sess.Begin(1)
	if sess.Begin(30) {
		t.Fatal("second Begin accepted while active")
	}
	if start, _ := sess.Provisional(); start != 1 {
		t.Errorf("Provisional() = %v, want 1", start)
	}
}

func TestSession_TooShortKeepsActive(t *testing.T) {
	store := NewStore()
	store.TryAdd(Slice{2, 5})
	sess := NewSession(store)

	sess.Begin(6.0)
	_, err := sess.Commit(6.5)
	if !errors.Is(err, ErrTooShort) {
		t.Fatalf("Commit(6.5) error = %v, want ErrTooShort", err)
	}
	if st, ok := sess.State().(Active); !ok || st.Start != 6.0 {
		t.Fatalf("State() = %#v, want Active{6}", sess.State())
	}

	if _, err := sess.Commit(9.0); err != nil {
		t.Fatalf("retry Commit(9.0) error = %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("store Len() = %d, want 2", store.Len())
	}
}

func TestSession_CommitWhileIdle(t *testing.T) {
	sess := NewSession(NewStore())
	if _, err := sess.Commit(3); !errors.Is(err, ErrNotSlicing) {
		t.Fatalf("Commit() from Idle error = %v, want ErrNotSlicing", err)
	}
}

func TestSession_Cancel(t *testing.T) {
	store := NewStore()
	sess := NewSession(store)

	if sess.Cancel() {
		t.Error("Cancel() from Idle reported a change")
	}
	sess.Begin(3)
	if !sess.Cancel() {
		t.Error("Cancel() from Active reported no change")
	}
	if _, idle := sess.State().(Idle); !idle {
		t.Errorf("State() = %#v, want Idle", sess.State())
	}
	if store.Len() != 0 {
		t.Errorf("Cancel mutated store: %v", store.All())
	}
}

func TestSession_BeginGuardMatchesQuery(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewStore()
		seeds := rapid.IntRange(0, 6).Draw(rt, "seeds")
		for i := 0; i < seeds; i++ {
			start := rapid.Float64Range(0, 100).Draw(rt, "start")
			store.TryAdd(Slice{start, start + rapid.Float64Range(2, 10).Draw(rt, "width")})
		}
		sess := NewSession(store)
		point := rapid.Float64Range(0, 110).Draw(rt, "point")

		_, inside := store.Query(point)
		started := sess.Begin(point)
		if started == inside {
			rt.Fatalf("Begin(%v) = %v with Query inside = %v", point, started, inside)
		}
		if started {
			if st, ok := sess.State().(Active); !ok || st.Start != point {
				rt.Fatalf("State() = %#v, want Active{%v}", sess.State(), point)
			}
		}
	})
}

func TestSession_OverlapLeavesStateUnchanged(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewStore()
		store.TryAdd(Slice{40, 60})
		sess := NewSession(store)

		start := rapid.Float64Range(0, 39).Draw(rt, "start")
		end := rapid.Float64Range(40, 100).Draw(rt, "end")
		if !sess.Begin(start) {
			rt.Fatalf("Begin(%v) refused", start)
		}

		_, err := sess.Commit(end)
		if end-start < MinDuration {
			return
		}
		if !errors.Is(err, ErrOverlap) {
			rt.Fatalf("Commit(%v) error = %v, want ErrOverlap", end, err)
		}
		if got, _ := sess.Provisional(); got != start {
			rt.Fatalf("Provisional() = %v, want %v", got, start)
		}
		if all := store.All(); len(all) != 1 || all[0] != (Slice{40, 60}) {
			rt.Fatalf("store changed: %v", all)
		}
	})
}
