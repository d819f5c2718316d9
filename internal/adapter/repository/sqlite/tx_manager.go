package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/usecase"
)

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin starts an immediate transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &Tx{tx: tx}, nil
}

// Tx wraps a database/sql transaction.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction. Rolling back a finished transaction
// is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func sqlTxFrom(tx usecase.Transaction) (*sql.Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, fmt.Errorf("sqlite: unsupported transaction %T", tx)
	}
	return t.tx, nil
}

// Retrier re-runs operations that failed with SQLITE_BUSY.
type Retrier struct {
	maxRetries uint64
	interval   time.Duration
	logger     zerolog.Logger
}

// NewRetrier creates a Retrier with default settings.
func NewRetrier(logger zerolog.Logger) *Retrier {
	return &Retrier{maxRetries: 5, interval: 20 * time.Millisecond, logger: logger}
}

// Retry implements usecase.Retrier.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), r.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return backoff.Permanent(err)
		}

		r.logger.Warn().Err(err).Msg("database busy, retrying")
		return err
	}, b)
}
