package worker

import "sync"

// listenerSet holds callbacks that can be released individually.
type listenerSet[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
}

// add registers fn and returns an idempotent release function.
func (s *listenerSet[T]) add(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fns == nil {
		s.fns = make(map[int]func(T))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

// snapshot returns the current callbacks in registration order.
func (s *listenerSet[T]) snapshot() []func(T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]func(T), 0, len(s.fns))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.fns[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// fire calls every callback with v. Callers must not hold locks the
// callbacks may need.
func (s *listenerSet[T]) fire(v T) {
	for _, fn := range s.snapshot() {
		fn(v)
	}
}

func (s *listenerSet[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// releaser holds a release function that may be set after the listener it
// releases has already fired.
type releaser struct {
	mu   sync.Mutex
	fn   func()
	done bool
}

// set stores fn, or calls it immediately if release already happened.
func (r *releaser) set(fn func()) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		fn()
		return
	}
	r.fn = fn
	r.mu.Unlock()
}

// release calls the stored function at most once.
func (r *releaser) release() {
	r.mu.Lock()
	r.done = true
	fn := r.fn
	r.fn = nil
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// pending reports whether a listener is still attached.
func (r *releaser) pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.done && r.fn != nil
}
