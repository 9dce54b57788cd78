package slicing

// State is the session state: either Idle or Active.
type State interface {
	isState()
}

// Idle means no slice is being defined.
type Idle struct{}

// Active carries the provisional start picked by Begin.
type Active struct {
	Start float64
}

func (Idle) isState()   {}
func (Active) isState() {}

// Session is the state machine capturing one in-progress slice.
type Session struct {
	store *Store
	state State
}

func NewSession(store *Store) *Session {
	return &Session{store: store, state: Idle{}}
}

func (s *Session) State() State {
	return s.state
}

// Provisional returns the pending start when the session is active.
func (s *Session) Provisional() (float64, bool) {
	if a, ok := s.state.(Active); ok {
		return a.Start, true
	}
	return 0, false
}

// Begin starts a slice at t. It is refused (returns false) when a slice is
// already in progress or t falls inside a committed slice.
func (s *Session) Begin(t float64) bool {
	if _, idle := s.state.(Idle); !idle {
		return false
	}
	if _, inside := s.store.Query(t); inside {
		return false
	}
	s.state = Active{Start: t}
	return true
}

// Commit closes the pending slice at t. Validation failures keep the session
// active with its provisional start so the caller can retry.
func (s *Session) Commit(t float64) (Slice, error) {
	active, ok := s.state.(Active)
	if !ok {
		return Slice{}, ErrNotSlicing
	}
	candidate := Span(active.Start, t)
	if err := s.store.TryAdd(candidate); err != nil {
		return Slice{}, err
	}
	s.state = Idle{}
	return candidate, nil
}

// Cancel discards the pending start. Returns false if nothing was pending.
func (s *Session) Cancel() bool {
	if _, ok := s.state.(Active); !ok {
		return false
	}
	s.state = Idle{}
	return true
}

// Reset forces the session back to Idle regardless of its state.
func (s *Session) Reset() {
	s.state = Idle{}
}
