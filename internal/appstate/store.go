package appstate

import "sync"

// Watcher observes every transition. It must not dispatch: watchers run in
// dispatch order while the next Dispatch waits.
type Watcher func(prev, next State)

// Store owns the single State value. Every change goes through Dispatch.
type Store struct {
	dispatchMu sync.Mutex

	mu       sync.Mutex
	state    State
	watchers map[int]Watcher
	nextID   int
}

func NewStore(initial State) *Store {
	return &Store{state: initial, watchers: make(map[int]Watcher)}
}

// Dispatch reduces a into the state and returns a copy of the result.
func (s *Store) Dispatch(a Action) State {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next := reduce(prev, a)
	s.state = next
	watchers := make([]Watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(prev.Clone(), next.Clone())
	}
	return next.Clone()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Watch registers w and returns its cancel func.
func (s *Store) Watch(w Watcher) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}
