package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/store"
)

// ErrUnavailable is returned while the store is marked down or a failure
// was injected with FailNext.
var ErrUnavailable = errors.New("remote unavailable")

// Store is an in-process remote repository. It backs demo mode and lets
// tests script remote failures.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]domain.SaleRecord
	order    []string
	down     bool
	failNext int
	inserts  int
}

func New() *Store {
	return &Store{byID: map[string]domain.SaleRecord{}}
}

// FailNext makes the next n Insert calls fail with ErrUnavailable.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// SetDown makes every call fail until cleared.
func (s *Store) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Inserts counts Insert calls, failed ones included.
func (s *Store) Inserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserts
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) Insert(ctx context.Context, record domain.SaleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inserts++
	if s.down {
		return ErrUnavailable
	}
	if s.failNext > 0 {
		s.failNext--
		return ErrUnavailable
	}
	if err := store.ValidateForInsert(record); err != nil {
		return err
	}
	if _, ok := s.byID[record.ID]; ok {
		return store.ErrDuplicate
	}

	record.Items = slices.Clone(record.Items)
	record.Synced = true
	s.byID[record.ID] = record
	s.order = append(s.order, record.ID)
	return nil
}

func (s *Store) SelectAll(ctx context.Context) ([]domain.SaleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.down {
		return nil, ErrUnavailable
	}

	out := make([]domain.SaleRecord, 0, len(s.order))
	for _, id := range s.order {
		record := s.byID[id]
		record.Items = slices.Clone(record.Items)
		out = append(out, record)
	}
	slices.SortStableFunc(out, func(a, b domain.SaleRecord) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return ErrUnavailable
	}
	s.byID = map[string]domain.SaleRecord{}
	s.order = nil
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.down {
		return ErrUnavailable
	}
	return nil
}
