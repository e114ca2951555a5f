// Package correlation matches asynchronous bus responses with the HTTP
// callers waiting for them.
package correlation

import (
	"errors"
	"sync"

	"github.com/drblury/protogate/internal/runtime/envelope"
)

// ErrDuplicateID is returned when a correlation id is registered twice.
var ErrDuplicateID = errors.New("correlation id already registered")

// Store holds one single-use response slot per correlation id.
type Store struct {
	mu      sync.Mutex
	pending map[string]chan envelope.Incoming
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{pending: make(map[string]chan envelope.Incoming)}
}

// Register creates the slot for id and returns its receiving end.
func (s *Store) Register(id string) (<-chan envelope.Incoming, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; ok {
		return nil, ErrDuplicateID
	}
	ch := make(chan envelope.Incoming, 1)
	s.pending[id] = ch
	return ch, nil
}

// Resolve removes the slot for id and delivers resp to it. It reports whether
// a slot was found. The slot is buffered and written exactly once, so the
// send never blocks even when the receiver has gone away.
func (s *Store) Resolve(id string, resp envelope.Incoming) bool {
	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	select {
	case ch <- resp:
	default:
	}
	return true
}

// Remove drops the slot for id without delivering anything and reports
// whether it was still pending.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	return true
}

// Len returns the number of pending requests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
