package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	store *Store
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(store *Store) *EntryRepository {
	return &EntryRepository{store: store}
}

// Create appends an entry to its context log on commit.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	stored := copyEntry(entry)
	t.ops = append(t.ops, func(s *Store) error {
		if _, ok := s.contexts[stored.ContextID]; !ok {
			return domain.ErrContextNotFound
		}
		if _, exists := s.byID[stored.ID]; exists {
			return fmt.Errorf("%w: entry %s already exists", domain.ErrValidation, stored.ID)
		}
		log := s.entries[stored.ContextID]
		s.entries[stored.ContextID] = append(log[:len(log):len(log)], stored)
		s.byID[stored.ID] = stored
		return nil
	})
	return nil
}

// GetByID returns a committed entry.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.byID[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return copyEntry(e), nil
}

// ListByContext returns entries dated on or after since, date descending
// then insertion order.
func (r *EntryRepository) ListByContext(ctx context.Context, contextID string, since *domain.Date) ([]*domain.Entry, error) {
	r.store.mu.RLock()
	log := r.store.entries[contextID]
	r.store.mu.RUnlock()

	out := make([]*domain.Entry, 0, len(log))
	for _, e := range log {
		if since != nil && e.Date.Before(since.Time) {
			continue
		}
		out = append(out, copyEntry(e))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c > 0
		}
		return out[i].Seq < out[j].Seq
	})

	return out, nil
}
