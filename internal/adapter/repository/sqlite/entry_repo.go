package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

const entryColumns = `e.id, e.context_id, e.context_type, e.seq, e.kind, e.entry_date, e.title, e.note,
	e.category, e.payer_id, e.author_id, e.amount, e.created_at`

// EntryRepository implements usecase.EntryRepository. Participants and
// adjustment lines live in child tables ordered by position.
type EntryRepository struct {
	db *sql.DB
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create appends an entry with its lines.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, e *domain.Entry) error {
	q, err := sqlTxFrom(tx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO entries (id, context_id, context_type, seq, kind, entry_date, title, note,
			category, payer_id, author_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ContextID, string(e.ContextType), e.Seq, string(e.Kind), e.Date.String(),
		e.Title, e.Note, e.Category, e.PayerID, e.AuthorID, int64(e.Amount), formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	for i, p := range e.Participants {
		_, err := q.ExecContext(ctx, `
			INSERT INTO entry_participants (entry_id, position, user_id, name, paid, share)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, i, p.UserID, p.Name, int64(p.Paid), int64(p.Share),
		)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	for i, l := range e.Adjustments {
		_, err := q.ExecContext(ctx, `
			INSERT INTO entry_adjustments (entry_id, position, counterpart_id, counterpart_name, direction, value)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, i, l.CounterpartID, l.CounterpartName, string(l.Direction), int64(l.Value),
		)
		if err != nil {
			return fmt.Errorf("insert adjustment line: %w", err)
		}
	}

	return nil
}

// GetByID retrieves an entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries e WHERE e.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}

	byID := map[string]*domain.Entry{e.ID: e}
	if err := r.loadLines(ctx, byID, `e.id = ?`, id); err != nil {
		return nil, err
	}

	return e, nil
}

// ListByContext returns entries by date descending, then Seq ascending.
func (r *EntryRepository) ListByContext(ctx context.Context, contextID string, since *domain.Date) ([]*domain.Entry, error) {
	where := `e.context_id = ?`
	args := []any{contextID}
	if since != nil {
		where += ` AND e.entry_date >= ?`
		args = append(args, since.String())
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries e WHERE `+where+` ORDER BY e.entry_date DESC, e.seq ASC`,
		args...,
	)
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.Entry, 0)
	byID := make(map[string]*domain.Entry)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
		byID[e.ID] = e
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return entries, nil
	}

	if err := r.loadLines(ctx, byID, where, args...); err != nil {
		return nil, err
	}

	return entries, nil
}

// loadLines fills participants and adjustment lines of the entries matched by where.
func (r *EntryRepository) loadLines(ctx context.Context, byID map[string]*domain.Entry, where string, args ...any) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.entry_id, p.user_id, p.name, p.paid, p.share
		FROM entry_participants p
		JOIN entries e ON e.id = p.entry_id
		WHERE `+where+`
		ORDER BY p.entry_id, p.position`,
		args...,
	)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			entryID     string
			p           domain.Participant
			paid, share int64
		)
		if err := rows.Scan(&entryID, &p.UserID, &p.Name, &paid, &share); err != nil {
			rows.Close()
			return err
		}
		p.Paid, p.Share = domain.Amount(paid), domain.Amount(share)
		if e, ok := byID[entryID]; ok {
			e.Participants = append(e.Participants, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT a.entry_id, a.counterpart_id, a.counterpart_name, a.direction, a.value
		FROM entry_adjustments a
		JOIN entries e ON e.id = a.entry_id
		WHERE `+where+`
		ORDER BY a.entry_id, a.position`,
		args...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entryID, direction string
			l                  domain.AdjustmentLine
			value              int64
		)
		if err := rows.Scan(&entryID, &l.CounterpartID, &l.CounterpartName, &direction, &value); err != nil {
			return err
		}
		l.Direction, l.Value = domain.Direction(direction), domain.Amount(value)
		if e, ok := byID[entryID]; ok {
			e.Adjustments = append(e.Adjustments, l)
		}
	}

	return rows.Err()
}

func scanEntry(row rowScanner) (*domain.Entry, error) {
	var (
		e                       domain.Entry
		contextType, kind, date string
		createdAt               string
		amount                  int64
	)

	err := row.Scan(&e.ID, &e.ContextID, &contextType, &e.Seq, &kind, &date, &e.Title, &e.Note,
		&e.Category, &e.PayerID, &e.AuthorID, &amount, &createdAt)
	if err != nil {
		return nil, err
	}

	if e.Date, err = domain.ParseDate(date); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	e.ContextType = domain.ContextType(contextType)
	e.Kind = domain.EntryKind(kind)
	e.Amount = domain.Amount(amount)

	return &e, nil
}
