// Package memory provides the in-process ledger backend, the default when
// no database file is configured. It is also what the tests run against.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"voicexpense/internal/core"
	"voicexpense/internal/ledger"
)

// Store implements ledger.Store with maps behind a RWMutex.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]core.Transaction
	rollups      map[string]core.MonthlyRollup
	pending      map[string]int // user_id -> transactions awaiting rollup

	lastMillis int64
	now        func() time.Time
}

func NewStore() *Store {
	return &Store{
		transactions: make(map[string]core.Transaction),
		rollups:      make(map[string]core.MonthlyRollup),
		pending:      make(map[string]int),
		now:          time.Now,
	}
}

// NewStoreWithClock fixes the clock used for ids and bookkeeping
// timestamps.
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.now = now
	return s
}

func (s *Store) SaveTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.Currency == "" {
		tx.Currency = core.DefaultCurrency
	}
	if tx.Description == "" {
		tx.Description = core.DescriptionUnknown
	}
	if tx.Category == "" {
		tx.Category = core.CategoryOther
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	millis := now.UnixMilli()
	// Ids derive from wall-clock millis; bump on collision so they stay
	// unique and monotonic within this store.
	if millis <= s.lastMillis {
		millis = s.lastMillis + 1
	}
	s.lastMillis = millis

	tx.ID = core.TransactionID(millis)
	if tx.EventTS.IsZero() {
		tx.EventTS = now
	}
	tx.CreatedAt = now
	tx.UpdatedAt = now

	s.transactions[tx.ID] = tx
	s.pending[tx.UserID]++
	return tx, nil
}

func (s *Store) ListTransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	// Insertion order: ids embed the save-time millis.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertRollup(ctx context.Context, r core.MonthlyRollup) (core.MonthlyRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	r.ID = core.RollupID(r.UserID, r.YearMonth)
	if existing, ok := s.rollups[r.ID]; ok {
		r.CreatedAt = existing.CreatedAt
	} else {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	s.rollups[r.ID] = r
	return r, nil
}

func (s *Store) GetRollup(ctx context.Context, userID, yearMonth string) (core.MonthlyRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rollups[core.RollupID(userID, yearMonth)]
	if !ok {
		return core.MonthlyRollup{}, ledger.ErrRollupNotFound
	}
	return r, nil
}

func (s *Store) ListRollupsByUser(ctx context.Context, userID string) ([]core.MonthlyRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.MonthlyRollup
	for _, r := range s.rollups {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].YearMonth > out[j].YearMonth })
	return out, nil
}

func (s *Store) ListPendingRollupUsers(ctx context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.pending))
	for u := range s.pending {
		users = append(users, u)
	}
	sort.Strings(users)
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *Store) MarkUserRolledUp(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, userID)
	return nil
}
