package memory

import (
	"context"
	"errors"
	"sync"

	"mesapos/backend/internal/localstore"
)

// ErrWriteFailed is returned by a Set scheduled to fail with FailSet.
var ErrWriteFailed = errors.New("local write failed")

type Store struct {
	mu      sync.RWMutex
	values  map[string]string
	closed  bool
	failKey string
	failIn  int
}

func New() *Store {
	return &Store{values: make(map[string]string)}
}

// FailSet makes the nth next Set on key fail once with ErrWriteFailed.
func (s *Store) FailSet(key string, nth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKey = key
	s.failIn = nth
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, localstore.ErrClosed
	}
	val, ok := s.values[key]
	return val, ok, nil
}

func (s *Store) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return localstore.ErrClosed
	}
	if key == s.failKey && s.failIn > 0 {
		s.failIn--
		if s.failIn == 0 {
			s.failKey = ""
			return ErrWriteFailed
		}
	}
	s.values[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return localstore.ErrClosed
	}
	delete(s.values, key)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
