package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// ContextRepository implements usecase.ContextRepository.
type ContextRepository struct {
	store *Store
}

// NewContextRepository creates a new ContextRepository.
func NewContextRepository(store *Store) *ContextRepository {
	return &ContextRepository{store: store}
}

// Create stores a new context on commit.
func (r *ContextRepository) Create(ctx context.Context, tx usecase.Transaction, c *domain.LedgerContext) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	stored := copyContext(c)
	t.ops = append(t.ops, func(s *Store) error {
		if _, exists := s.contexts[stored.ID]; exists {
			return fmt.Errorf("%w: context %s already exists", domain.ErrValidation, stored.ID)
		}
		if stored.Type == domain.ContextTypeFriend {
			key := domain.FriendKey(stored.Members[0].UserID, stored.Members[1].UserID)
			if _, exists := s.friends[key]; exists {
				return fmt.Errorf("%w: friends already linked", domain.ErrValidation)
			}
			s.friends[key] = stored.ID
		}
		s.contexts[stored.ID] = stored
		return nil
	})
	return nil
}

// GetByID returns a committed context.
func (r *ContextRepository) GetByID(ctx context.Context, id string) (*domain.LedgerContext, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.contexts[id]
	if !ok {
		return nil, domain.ErrContextNotFound
	}
	return copyContext(c), nil
}

// GetByIDForUpdate locks the context for the rest of tx.
func (r *ContextRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerContext, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	t.lock(id)

	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v, ok := t.versions[id]; ok {
		c.Version = v
	}
	return c, nil
}

// ListByMember returns contexts userID belongs to, newest first.
func (r *ContextRepository) ListByMember(ctx context.Context, userID string) ([]*domain.LedgerContext, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.LedgerContext
	for _, c := range r.store.contexts {
		if c.HasMember(userID) {
			out = append(out, copyContext(c))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// FindFriend returns the friend context linking two users.
func (r *ContextRepository) FindFriend(ctx context.Context, userA, userB string) (*domain.LedgerContext, error) {
	r.store.mu.RLock()
	id, ok := r.store.friends[domain.FriendKey(userA, userB)]
	r.store.mu.RUnlock()

	if !ok {
		return nil, domain.ErrContextNotFound
	}
	return r.GetByID(ctx, id)
}

// AddMembers extends a roster on commit.
func (r *ContextRepository) AddMembers(ctx context.Context, tx usecase.Transaction, contextID string, members []domain.Member) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	added := append([]domain.Member(nil), members...)
	t.ops = append(t.ops, func(s *Store) error {
		c, ok := s.contexts[contextID]
		if !ok {
			return domain.ErrContextNotFound
		}
		updated := copyContext(c)
		updated.Members = append(updated.Members, added...)
		s.contexts[contextID] = updated
		return nil
	})
	return nil
}

// IncrementVersion bumps the version on commit and returns the new value.
func (r *ContextRepository) IncrementVersion(ctx context.Context, tx usecase.Transaction, contextID string, updatedAt time.Time) (int64, error) {
	t, err := asTx(tx)
	if err != nil {
		return 0, err
	}

	current, ok := t.versions[contextID]
	if !ok {
		c, err := r.GetByID(ctx, contextID)
		if err != nil {
			return 0, err
		}
		current = c.Version
	}
	next := current + 1
	t.versions[contextID] = next

	t.ops = append(t.ops, func(s *Store) error {
		c, ok := s.contexts[contextID]
		if !ok {
			return domain.ErrContextNotFound
		}
		updated := copyContext(c)
		updated.Version = next
		updated.UpdatedAt = updatedAt
		s.contexts[contextID] = updated
		return nil
	})

	return next, nil
}
