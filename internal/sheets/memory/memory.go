package memory

import (
	"context"
	"slices"
	"sync"

	ports "saldo/internal/sheets"
)

// Store is an in-process TransactionMirror used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu     sync.Mutex
	header []string
	rows   map[int64][]string
	order  []int64
	err    error
}

var _ ports.TransactionMirror = (*Store)(nil)

func New() *Store {
	return &Store{rows: map[int64][]string{}}
}

// FailWith makes every later call return err; nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) EnsureHeader(_ context.Context, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.header = slices.Clone(header)
	return nil
}

func (s *Store) Upsert(_ context.Context, id int64, cells []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.rows[id]; !ok {
		s.order = append(s.order, id)
	}
	s.rows[id] = slices.Clone(cells)
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.rows[id]; !ok {
		return nil
	}
	delete(s.rows, id)
	s.order = slices.DeleteFunc(s.order, func(v int64) bool { return v == id })
	return nil
}

func (s *Store) Header() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.header)
}

// Row returns the cells stored for id.
func (s *Store) Row(id int64) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return slices.Clone(r), ok
}

// Rows returns every row in insertion order.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, slices.Clone(s.rows[id]))
	}
	return out
}
