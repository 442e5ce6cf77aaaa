package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"retailsense/internal/model"
	"retailsense/internal/repository"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory store closed")

// TransactionStore is an in-memory implementation of repository.TransactionRepository.
type TransactionStore struct {
	mu     sync.RWMutex
	rows   []model.Transaction // kept sorted by (InvoiceDate, ID)
	nextID int64
	closed bool
}

// NewTransactionStore creates a store seeded with txs. Rows without an ID get one.
func NewTransactionStore(txs ...model.Transaction) *TransactionStore {
	s := &TransactionStore{nextID: 1}
	_ = s.CreateBatch(context.Background(), txs)
	return s
}

// CreateBatch inserts copies of txs.
func (s *TransactionStore) CreateBatch(_ context.Context, txs []model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &repository.StoreError{Op: "insert transactions", Kind: repository.ErrUnavailable, Err: ErrClosed}
	}
	for _, t := range txs {
		if t.ID == 0 {
			t.ID = s.nextID
		}
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
		s.rows = append(s.rows, t)
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		a, b := s.rows[i], s.rows[j]
		if !a.InvoiceDate.Equal(b.InvoiceDate) {
			return a.InvoiceDate.Before(b.InvoiceDate)
		}
		return a.ID < b.ID
	})
	return nil
}

// Scan visits rows of the range in (InvoiceDate, ID) order. The snapshot is taken
// under the read lock, so writers never block on a slow callback.
func (s *TransactionStore) Scan(ctx context.Context, filter repository.ScanFilter, fn func(model.Transaction) error) error {
	snapshot, err := s.snapshot()
	if err != nil {
		return err
	}
	for i, t := range snapshot {
		if i%repository.ScanBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if !inRange(t, filter.From, filter.To) {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// List returns one page of matching rows and the total match count.
func (s *TransactionStore) List(ctx context.Context, filter repository.ListFilter) ([]model.Transaction, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	snapshot, err := s.snapshot()
	if err != nil {
		return nil, 0, err
	}
	filter = filter.Normalize()

	var matched []model.Transaction
	for _, t := range snapshot {
		if !inRange(t, filter.From, filter.To) {
			continue
		}
		if filter.Country != "" && t.Country != filter.Country {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		matched = append(matched, t)
	}

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return []model.Transaction{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// Ping fails once the store is closed.
func (s *TransactionStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &repository.StoreError{Op: "ping", Kind: repository.ErrUnavailable, Err: ErrClosed}
	}
	return nil
}

// Close makes every later call fail as unavailable.
func (s *TransactionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored rows.
func (s *TransactionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *TransactionStore) snapshot() ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &repository.StoreError{Op: "scan transactions", Kind: repository.ErrUnavailable, Err: ErrClosed}
	}
	out := make([]model.Transaction, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func inRange(t model.Transaction, from, to time.Time) bool {
	if !from.IsZero() && t.InvoiceDate.Before(from) {
		return false
	}
	if !to.IsZero() && !t.InvoiceDate.Before(to) {
		return false
	}
	return true
}
