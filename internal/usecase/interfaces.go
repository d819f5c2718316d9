package usecase

import (
	"context"
	"time"

	"github.com/iho/splitledger/internal/domain"
)

// ContextRepository defines data access for friend and group contexts.
type ContextRepository interface {
	Create(ctx context.Context, tx Transaction, c *domain.LedgerContext) error
	GetByID(ctx context.Context, id string) (*domain.LedgerContext, error)
	// GetByIDForUpdate locks the context row until tx ends. Appends to the
	// same context serialize on this lock.
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LedgerContext, error)
	ListByMember(ctx context.Context, userID string) ([]*domain.LedgerContext, error)
	FindFriend(ctx context.Context, userA, userB string) (*domain.LedgerContext, error)
	AddMembers(ctx context.Context, tx Transaction, contextID string, members []domain.Member) error
	// IncrementVersion bumps the context version and returns the new value.
	IncrementVersion(ctx context.Context, tx Transaction, contextID string, updatedAt time.Time) (int64, error)
}

// EntryRepository defines data access for the append-only entry log.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
	// ListByContext returns entries by date descending, then Seq ascending.
	ListByContext(ctx context.Context, contextID string, since *domain.Date) ([]*domain.Entry, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// BalanceCache stores computed nets keyed by context version.
type BalanceCache interface {
	GetNet(ctx context.Context, contextID string, version int64, userID string) (domain.Amount, bool, error)
	SetNet(ctx context.Context, contextID string, version int64, userID string, net domain.Amount) error
	InvalidateContext(ctx context.Context, contextID string) error
}

// EventPublisher delivers domain events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) error
}

// MetricsRecorder records ledger activity.
type MetricsRecorder interface {
	EntryAppended(kind domain.EntryKind, contextType domain.ContextType, elapsed time.Duration)
	AppendFailed(reason string)
	ContextCreated(contextType domain.ContextType)
	CacheLookup(hit bool)
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key so a failed request can be retried.
	Release(ctx context.Context, key string) error
}

type noopMetrics struct{}

func (noopMetrics) EntryAppended(domain.EntryKind, domain.ContextType, time.Duration) {}
func (noopMetrics) AppendFailed(string)                                               {}
func (noopMetrics) ContextCreated(domain.ContextType)                                 {}
func (noopMetrics) CacheLookup(bool)                                                  {}
