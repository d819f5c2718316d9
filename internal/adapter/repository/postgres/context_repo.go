package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

const contextColumns = `id, type, name, currency, version, created_at, updated_at`

// ContextRepository implements usecase.ContextRepository.
type ContextRepository struct {
	db querier
}

// NewContextRepository creates a new ContextRepository.
func NewContextRepository(pool *pgxpool.Pool) *ContextRepository {
	return newContextRepository(pool)
}

func newContextRepository(db querier) *ContextRepository {
	return &ContextRepository{db: db}
}

// Create inserts a context and its roster.
func (r *ContextRepository) Create(ctx context.Context, tx usecase.Transaction, c *domain.LedgerContext) error {
	q, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	var friendKey *string
	if c.Type == domain.ContextTypeFriend && len(c.Members) == 2 {
		key := domain.FriendKey(c.Members[0].UserID, c.Members[1].UserID)
		friendKey = &key
	}

	query := `
		INSERT INTO ledger_contexts (id, type, name, currency, friend_key, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = q.Exec(ctx, query,
		c.ID,
		string(c.Type),
		c.Name,
		c.Currency,
		friendKey,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: friends already linked", domain.ErrValidation)
		}
		return err
	}

	return insertMembers(ctx, q, c.ID, 0, c.Members)
}

// GetByID retrieves a context with its roster.
func (r *ContextRepository) GetByID(ctx context.Context, id string) (*domain.LedgerContext, error) {
	return getContext(ctx, r.db, `SELECT `+contextColumns+` FROM ledger_contexts WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a context and locks its row until tx ends.
func (r *ContextRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerContext, error) {
	q, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	return getContext(ctx, q, `SELECT `+contextColumns+` FROM ledger_contexts WHERE id = $1 FOR UPDATE`, id)
}

// ListByMember returns the contexts userID belongs to, newest first.
func (r *ContextRepository) ListByMember(ctx context.Context, userID string) ([]*domain.LedgerContext, error) {
	query := `
		SELECT c.id, c.type, c.name, c.currency, c.version, c.created_at, c.updated_at
		FROM ledger_contexts c
		JOIN context_members m ON m.context_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC, c.id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	var (
		contexts []*domain.LedgerContext
		ids      []string
	)
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		contexts = append(contexts, c)
		ids = append(ids, c.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(contexts) == 0 {
		return contexts, nil
	}

	members, err := loadMembers(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range contexts {
		c.Members = members[c.ID]
	}

	return contexts, nil
}

// FindFriend returns the friend context linking two users.
func (r *ContextRepository) FindFriend(ctx context.Context, userA, userB string) (*domain.LedgerContext, error) {
	return getContext(ctx, r.db,
		`SELECT `+contextColumns+` FROM ledger_contexts WHERE friend_key = $1`,
		domain.FriendKey(userA, userB),
	)
}

// AddMembers appends members to the end of a roster.
func (r *ContextRepository) AddMembers(ctx context.Context, tx usecase.Transaction, contextID string, members []domain.Member) error {
	q, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	var last int
	err = q.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) FROM context_members WHERE context_id = $1`,
		contextID,
	).Scan(&last)
	if err != nil {
		return err
	}

	return insertMembers(ctx, q, contextID, last+1, members)
}

// IncrementVersion bumps the context version and returns the new value.
func (r *ContextRepository) IncrementVersion(ctx context.Context, tx usecase.Transaction, contextID string, updatedAt time.Time) (int64, error) {
	q, err := pgxTxFrom(tx)
	if err != nil {
		return 0, err
	}

	var version int64
	err = q.QueryRow(ctx,
		`UPDATE ledger_contexts SET version = version + 1, updated_at = $2 WHERE id = $1 RETURNING version`,
		contextID, updatedAt,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrContextNotFound
	}

	return version, err
}

func getContext(ctx context.Context, q querier, query, arg string) (*domain.LedgerContext, error) {
	c, err := scanContext(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContextNotFound
		}
		return nil, err
	}

	members, err := loadMembers(ctx, q, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Members = members[c.ID]

	return c, nil
}

func scanContext(row pgx.Row) (*domain.LedgerContext, error) {
	var (
		c           domain.LedgerContext
		contextType string
	)

	err := row.Scan(
		&c.ID,
		&contextType,
		&c.Name,
		&c.Currency,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Type = domain.ContextType(contextType)
	return &c, nil
}

func loadMembers(ctx context.Context, q querier, contextIDs []string) (map[string][]domain.Member, error) {
	query := `
		SELECT context_id, user_id, name, joined_at
		FROM context_members
		WHERE context_id = ANY($1)
		ORDER BY context_id, position
	`

	rows, err := q.Query(ctx, query, contextIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Member, len(contextIDs))
	for rows.Next() {
		var (
			contextID string
			m         domain.Member
		)
		if err := rows.Scan(&contextID, &m.UserID, &m.Name, &m.JoinedAt); err != nil {
			return nil, err
		}
		out[contextID] = append(out[contextID], m)
	}

	return out, rows.Err()
}

func insertMembers(ctx context.Context, q querier, contextID string, firstPosition int, members []domain.Member) error {
	query := `
		INSERT INTO context_members (context_id, user_id, name, position, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	for i, m := range members {
		_, err := q.Exec(ctx, query, contextID, m.UserID, m.Name, firstPosition+i, m.JoinedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", domain.ErrMemberAlreadyInRoster, m.UserID)
			}
			return err
		}
	}

	return nil
}
