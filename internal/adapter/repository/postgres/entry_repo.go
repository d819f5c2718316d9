package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

const entryColumns = `id, context_id, context_type, seq, kind, entry_date, title, note, category,
	payer_id, author_id, amount, participants, adjustments, created_at`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db querier
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepository(pool)
}

func newEntryRepository(db querier) *EntryRepository {
	return &EntryRepository{db: db}
}

// participantRecord is the JSONB shape of a participant.
type participantRecord struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Paid   int64  `json:"paid"`
	Share  int64  `json:"share"`
}

type adjustmentRecord struct {
	CounterpartID   string `json:"counterpart_id"`
	CounterpartName string `json:"counterpart_name,omitempty"`
	Direction       string `json:"direction"`
	Value           int64  `json:"value"`
}

// Create appends an entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	q, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	participants, adjustments, err := encodeLines(entry)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = q.Exec(ctx, query,
		entry.ID,
		entry.ContextID,
		string(entry.ContextType),
		entry.Seq,
		string(entry.Kind),
		entry.Date.Time,
		entry.Title,
		entry.Note,
		entry.Category,
		entry.PayerID,
		entry.AuthorID,
		int64(entry.Amount),
		participants,
		adjustments,
		entry.CreatedAt,
	)

	return err
}

// GetByID retrieves an entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}

	return e, nil
}

// ListByContext returns entries by date descending, then Seq ascending.
func (r *EntryRepository) ListByContext(ctx context.Context, contextID string, since *domain.Date) ([]*domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE context_id = $1`
	args := []any{contextID}

	if since != nil {
		query += ` AND entry_date >= $2`
		args = append(args, since.Time)
	}
	query += ` ORDER BY entry_date DESC, seq ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var (
		e            domain.Entry
		contextType  string
		kind         string
		date         time.Time
		amount       int64
		participants []byte
		adjustments  []byte
	)

	err := row.Scan(
		&e.ID,
		&e.ContextID,
		&contextType,
		&e.Seq,
		&kind,
		&date,
		&e.Title,
		&e.Note,
		&e.Category,
		&e.PayerID,
		&e.AuthorID,
		&amount,
		&participants,
		&adjustments,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ContextType = domain.ContextType(contextType)
	e.Kind = domain.EntryKind(kind)
	e.Date = domain.DateOf(date)
	e.Amount = domain.Amount(amount)

	if err := decodeLines(&e, participants, adjustments); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", e.ID, err)
	}

	return &e, nil
}

func encodeLines(e *domain.Entry) ([]byte, []byte, error) {
	participants := make([]participantRecord, 0, len(e.Participants))
	for _, p := range e.Participants {
		participants = append(participants, participantRecord{
			UserID: p.UserID,
			Name:   p.Name,
			Paid:   int64(p.Paid),
			Share:  int64(p.Share),
		})
	}

	adjustments := make([]adjustmentRecord, 0, len(e.Adjustments))
	for _, l := range e.Adjustments {
		adjustments = append(adjustments, adjustmentRecord{
			CounterpartID:   l.CounterpartID,
			CounterpartName: l.CounterpartName,
			Direction:       string(l.Direction),
			Value:           int64(l.Value),
		})
	}

	pj, err := json.Marshal(participants)
	if err != nil {
		return nil, nil, err
	}
	aj, err := json.Marshal(adjustments)
	if err != nil {
		return nil, nil, err
	}

	return pj, aj, nil
}

func decodeLines(e *domain.Entry, participants, adjustments []byte) error {
	var pr []participantRecord
	if err := json.Unmarshal(participants, &pr); err != nil {
		return err
	}
	for _, p := range pr {
		e.Participants = append(e.Participants, domain.Participant{
			UserID: p.UserID,
			Name:   p.Name,
			Paid:   domain.Amount(p.Paid),
			Share:  domain.Amount(p.Share),
		})
	}

	if len(adjustments) == 0 {
		return nil
	}

	var ar []adjustmentRecord
	if err := json.Unmarshal(adjustments, &ar); err != nil {
		return err
	}
	for _, l := range ar {
		e.Adjustments = append(e.Adjustments, domain.AdjustmentLine{
			CounterpartID:   l.CounterpartID,
			CounterpartName: l.CounterpartName,
			Direction:       domain.Direction(l.Direction),
			Value:           domain.Amount(l.Value),
		})
	}

	return nil
}
