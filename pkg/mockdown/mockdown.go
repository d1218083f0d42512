// Package mockdown is a tiny expectation-based mocking helper. A test queues
// expectations as plain functions; production code under test calls On with
// its arguments and receives whatever the next expectation returns. Calls
// must arrive in the queued order and with the queued types.
package mockdown

import (
	"fmt"
	"sync"
)

// Store holds a FIFO queue of expectations.
type Store struct {
	lock    sync.Mutex
	expects []any
}

// Expect queues fn, which must have the shape func(T) U. It returns the
// store so expectations can be chained.
func (s *Store) Expect(fn any) *Store {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.expects = append(s.expects, fn)
	return s
}

// Clear drops all pending expectations.
func (s *Store) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.expects = nil
}

// Remaining returns the number of unconsumed expectations. Tests usually
// assert that this is zero before they finish.
func (s *Store) Remaining() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.expects)
}

func (s *Store) next() (any, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.expects) == 0 {
		return nil, false
	}

	fn := s.expects[0]
	s.expects = s.expects[1:]
	return fn, true
}

// On pops the next expectation and calls it with args. It fails if the queue
// is empty or if the expectation was queued for a different signature.
func On[T, U any](s *Store, args T) (U, error) {
	var zero U

	next, ok := s.next()
	if !ok {
		return zero, fmt.Errorf("expect type mismatch: expecting nothing, received %T", (func(T) U)(nil))
	}

	fn, ok := next.(func(T) U)
	if !ok {
		return zero, fmt.Errorf("expect type mismatch: expecting %T, received %T", next, (func(T) U)(nil))
	}

	return fn(args), nil
}
