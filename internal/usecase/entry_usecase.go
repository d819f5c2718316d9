package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/balance"
	"github.com/iho/splitledger/internal/domain"
)

// EntryUseCase appends to and reads from per-context entry logs.
type EntryUseCase struct {
	txManager   TransactionManager
	contextRepo ContextRepository
	entryRepo   EntryRepository
	idGen       IDGenerator
	cache       BalanceCache
	publisher   EventPublisher
	retrier     Retrier
	metrics     MetricsRecorder
	logger      zerolog.Logger
	locks       *contextLocks
	now         func() time.Time
}

// EntryOption configures optional collaborators of EntryUseCase.
type EntryOption func(*EntryUseCase)

// WithBalanceCache invalidates cached nets after every append.
func WithBalanceCache(c BalanceCache) EntryOption {
	return func(uc *EntryUseCase) { uc.cache = c }
}

// WithEventPublisher publishes entry.appended after every append.
func WithEventPublisher(p EventPublisher) EntryOption {
	return func(uc *EntryUseCase) { uc.publisher = p }
}

// WithRetrier retries the append transaction on transient storage errors.
func WithRetrier(r Retrier) EntryOption {
	return func(uc *EntryUseCase) { uc.retrier = r }
}

// WithMetrics records append outcomes.
func WithMetrics(m MetricsRecorder) EntryOption {
	return func(uc *EntryUseCase) { uc.metrics = m }
}

// WithLogger sets the use case logger.
func WithLogger(l zerolog.Logger) EntryOption {
	return func(uc *EntryUseCase) { uc.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EntryOption {
	return func(uc *EntryUseCase) { uc.now = now }
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(
	txManager TransactionManager,
	contextRepo ContextRepository,
	entryRepo EntryRepository,
	idGen IDGenerator,
	opts ...EntryOption,
) *EntryUseCase {
	uc := &EntryUseCase{
		txManager:   txManager,
		contextRepo: contextRepo,
		entryRepo:   entryRepo,
		idGen:       idGen,
		metrics:     noopMetrics{},
		logger:      zerolog.Nop(),
		locks:       newContextLocks(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// AppendEntryInput represents input for appending an entry.
type AppendEntryInput struct {
	Draft     domain.Draft
	ContextID string
	// ActorID, when set, must be a member of the context.
	ActorID string
}

// AppendEntry validates a draft and appends it to the context log. Either the
// entry and the version bump are both stored or neither is. Cached balances
// of the context are invalidated before it returns.
func (uc *EntryUseCase) AppendEntry(ctx context.Context, input AppendEntryInput) (*domain.Entry, error) {
	start := uc.now()

	entry, err := domain.BuildEntry(input.Draft)
	if err != nil {
		uc.metrics.AppendFailed("validation")
		return nil, err
	}

	if _, err := balance.Delta(entry); err != nil {
		uc.metrics.AppendFailed("validation")
		return nil, err
	}

	unlock := uc.locks.Lock(input.ContextID)
	defer unlock()

	var lc *domain.LedgerContext
	op := func() error {
		var err error
		lc, err = uc.appendTx(ctx, input, entry)
		return err
	}

	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}
	if err != nil {
		uc.metrics.AppendFailed(failureReason(err))
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.InvalidateContext(ctx, lc.ID); err != nil {
			uc.logger.Warn().Err(err).Str("context_id", lc.ID).Msg("failed to invalidate balance cache")
		}
	}

	if uc.publisher != nil {
		event := domain.NewEntryAppendedEvent(uc.idGen.Generate(), entry, lc)
		if err := uc.publisher.Publish(ctx, event); err != nil {
			uc.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to publish entry event")
		}
	}

	uc.metrics.EntryAppended(entry.Kind, entry.ContextType, uc.now().Sub(start))
	uc.logger.Info().
		Str("context_id", lc.ID).
		Str("entry_id", entry.ID).
		Str("kind", string(entry.Kind)).
		Int64("seq", entry.Seq).
		Msg("entry appended")

	return entry, nil
}

func (uc *EntryUseCase) appendTx(ctx context.Context, input AppendEntryInput, entry *domain.Entry) (*domain.LedgerContext, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	lc, err := uc.contextRepo.GetByIDForUpdate(ctx, tx, input.ContextID)
	if err != nil {
		return nil, err
	}

	if input.ActorID != "" && !lc.HasMember(input.ActorID) {
		return nil, domain.ErrForbidden
	}

	if err := lc.CheckRoster(entry); err != nil {
		return nil, err
	}

	now := uc.now()
	entry.ID = uc.idGen.Generate()
	entry.ContextID = lc.ID
	entry.ContextType = lc.Type
	entry.CreatedAt = now
	entry.Seq = lc.Version + 1

	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	version, err := uc.contextRepo.IncrementVersion(ctx, tx, lc.ID, now)
	if err != nil {
		return nil, err
	}
	if version != entry.Seq {
		return nil, fmt.Errorf("context %s moved to version %d while appending seq %d", lc.ID, version, entry.Seq)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	lc.Version = version
	lc.UpdatedAt = now

	return lc, nil
}

// ListEntriesInput represents input for listing a context's entries.
type ListEntriesInput struct {
	Since     *domain.Date
	ContextID string
	ActorID   string
}

// ListEntries returns the context log, most recent date first and insertion
// order within a date.
func (uc *EntryUseCase) ListEntries(ctx context.Context, input ListEntriesInput) ([]*domain.Entry, error) {
	if _, err := loadContext(ctx, uc.contextRepo, input.ContextID, input.ActorID); err != nil {
		return nil, err
	}

	return uc.entryRepo.ListByContext(ctx, input.ContextID, input.Since)
}

// ListSections returns the context log bucketed by date.
func (uc *EntryUseCase) ListSections(ctx context.Context, input ListEntriesInput) ([]balance.Section, error) {
	entries, err := uc.ListEntries(ctx, input)
	if err != nil {
		return nil, err
	}
	return balance.GroupByDate(entries), nil
}

// GetEntry returns one entry if actorID belongs to its context.
func (uc *EntryUseCase) GetEntry(ctx context.Context, entryID, actorID string) (*domain.Entry, error) {
	entry, err := uc.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if _, err := loadContext(ctx, uc.contextRepo, entry.ContextID, actorID); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}

	return entry, nil
}

// loadContext fetches a context and checks that actorID is on its roster.
func loadContext(ctx context.Context, repo ContextRepository, contextID, actorID string) (*domain.LedgerContext, error) {
	lc, err := repo.GetByID(ctx, contextID)
	if err != nil {
		return nil, err
	}

	if actorID != "" && !lc.HasMember(actorID) {
		return nil, domain.ErrForbidden
	}

	return lc, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
