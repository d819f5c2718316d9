package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
	pgErrUniqueViolation      = "23505"
)

// Retrier implements usecase.Retrier. Appends that lose a lock race on the
// context row are re-run with exponential backoff.
type Retrier struct {
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          zerolog.Logger
	onRetry         func(code string)
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger zerolog.Logger) RetrierOption {
	return func(r *Retrier) { r.logger = logger }
}

// WithMaxRetries caps the number of re-runs after the first attempt.
func WithMaxRetries(n uint64) RetrierOption {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithRetryHook is called with the SQLSTATE of every retried failure.
func WithRetryHook(fn func(code string)) RetrierOption {
	return func(r *Retrier) { r.onRetry = fn }
}

// NewRetrier creates a Retrier with 3 retries between 50ms and 1s apart.
func NewRetrier(opts ...RetrierOption) *Retrier {
	r := &Retrier{
		maxRetries:      3,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
		logger:          log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retry runs operation until it succeeds, fails permanently or the retries run out.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.initialInterval
	exp.MaxInterval = r.maxInterval
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, r.maxRetries), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}

		code, ok := retryableCode(err)
		if !ok {
			return backoff.Permanent(err)
		}

		r.logger.Warn().
			Err(err).
			Str("sqlstate", code).
			Int("attempt", attempt).
			Msg("append lost a lock race, retrying")
		if r.onRetry != nil {
			r.onRetry(code)
		}

		return err
	}, b)
}

// retryableCode reports the SQLSTATE of a deadlock, serialization or lock timeout failure.
func retryableCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}

	switch pgErr.Code {
	case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable:
		return pgErr.Code, true
	}
	return "", false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
