package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

const contextColumns = `id, type, name, currency, version, created_at, updated_at`

// ContextRepository implements usecase.ContextRepository.
type ContextRepository struct {
	db *sql.DB
}

// NewContextRepository creates a new ContextRepository.
func NewContextRepository(db *sql.DB) *ContextRepository {
	return &ContextRepository{db: db}
}

// Create inserts a context and its roster.
func (r *ContextRepository) Create(ctx context.Context, tx usecase.Transaction, c *domain.LedgerContext) error {
	q, err := sqlTxFrom(tx)
	if err != nil {
		return err
	}

	var friendKey sql.NullString
	if c.Type == domain.ContextTypeFriend && len(c.Members) == 2 {
		friendKey = sql.NullString{String: domain.FriendKey(c.Members[0].UserID, c.Members[1].UserID), Valid: true}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO ledger_contexts (id, type, name, currency, friend_key, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Type), c.Name, c.Currency, friendKey, c.Version,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: friends already linked", domain.ErrValidation)
		}
		return fmt.Errorf("insert context: %w", err)
	}

	return insertMembers(ctx, q, c.ID, 0, c.Members)
}

// GetByID retrieves a context with its roster.
func (r *ContextRepository) GetByID(ctx context.Context, id string) (*domain.LedgerContext, error) {
	return getContext(ctx, r.db, `SELECT `+contextColumns+` FROM ledger_contexts WHERE id = ?`, id)
}

// GetByIDForUpdate reads the context inside tx. The immediate transaction
// already holds the write lock.
func (r *ContextRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerContext, error) {
	q, err := sqlTxFrom(tx)
	if err != nil {
		return nil, err
	}

	return getContext(ctx, q, `SELECT `+contextColumns+` FROM ledger_contexts WHERE id = ?`, id)
}

// ListByMember returns the contexts userID belongs to, newest first.
func (r *ContextRepository) ListByMember(ctx context.Context, userID string) ([]*domain.LedgerContext, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.type, c.name, c.currency, c.version, c.created_at, c.updated_at
		FROM ledger_contexts c
		JOIN context_members m ON m.context_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.created_at DESC, c.id`,
		userID,
	)
	if err != nil {
		return nil, err
	}

	var contexts []*domain.LedgerContext
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		contexts = append(contexts, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := queryMembers(ctx, r.db, `
		SELECT context_id, user_id, name, joined_at
		FROM context_members
		WHERE context_id IN (SELECT context_id FROM context_members WHERE user_id = ?)
		ORDER BY context_id, position`,
		userID,
	)
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
		`SELECT `+contextColumns+` FROM ledger_contexts WHERE friend_key = ?`,
		domain.FriendKey(userA, userB),
	)
}

// AddMembers appends members to the end of a roster.
func (r *ContextRepository) AddMembers(ctx context.Context, tx usecase.Transaction, contextID string, members []domain.Member) error {
	q, err := sqlTxFrom(tx)
	if err != nil {
		return err
	}

	var last int
	err = q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) FROM context_members WHERE context_id = ?`,
		contextID,
	).Scan(&last)
	if err != nil {
		return err
	}

	return insertMembers(ctx, q, contextID, last+1, members)
}

// IncrementVersion bumps the context version and returns the new value.
func (r *ContextRepository) IncrementVersion(ctx context.Context, tx usecase.Transaction, contextID string, updatedAt time.Time) (int64, error) {
	q, err := sqlTxFrom(tx)
	if err != nil {
		return 0, err
	}

	var version int64
	err = q.QueryRowContext(ctx,
		`UPDATE ledger_contexts SET version = version + 1, updated_at = ? WHERE id = ? RETURNING version`,
		formatTime(updatedAt), contextID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrContextNotFound
	}

	return version, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getContext(ctx context.Context, q querier, query, arg string) (*domain.LedgerContext, error) {
	c, err := scanContext(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContextNotFound
		}
		return nil, err
	}

	members, err := queryMembers(ctx, q, `
		SELECT context_id, user_id, name, joined_at
		FROM context_members
		WHERE context_id = ?
		ORDER BY position`,
		c.ID,
	)
	if err != nil {
		return nil, err
	}
	c.Members = members[c.ID]

	return c, nil
}

func scanContext(row rowScanner) (*domain.LedgerContext, error) {
	var (
		c                    domain.LedgerContext
		contextType          string
		createdAt, updatedAt string
	)

	if err := row.Scan(&c.ID, &contextType, &c.Name, &c.Currency, &c.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	c.Type = domain.ContextType(contextType)

	return &c, nil
}

func queryMembers(ctx context.Context, q querier, query string, args ...any) (map[string][]domain.Member, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.Member)
	for rows.Next() {
		var (
			contextID, joinedAt string
			m                   domain.Member
		)
		if err := rows.Scan(&contextID, &m.UserID, &m.Name, &joinedAt); err != nil {
			return nil, err
		}
		if m.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, err
		}
		out[contextID] = append(out[contextID], m)
	}

	return out, rows.Err()
}

func insertMembers(ctx context.Context, q querier, contextID string, firstPosition int, members []domain.Member) error {
	for i, m := range members {
		_, err := q.ExecContext(ctx, `
			INSERT INTO context_members (context_id, user_id, name, position, joined_at)
			VALUES (?, ?, ?, ?, ?)`,
			contextID, m.UserID, m.Name, firstPosition+i, formatTime(m.JoinedAt),
		)
		if err != nil {
			if isConstraintViolation(err) {
				return fmt.Errorf("%w: %s", domain.ErrMemberAlreadyInRoster, m.UserID)
			}
			return fmt.Errorf("insert member: %w", err)
		}
	}

	return nil
}
