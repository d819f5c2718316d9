package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/domain"
)

// ContextUseCase manages friend pairs and groups.
type ContextUseCase struct {
	txManager       TransactionManager
	contextRepo     ContextRepository
	idGen           IDGenerator
	publisher       EventPublisher
	metrics         MetricsRecorder
	logger          zerolog.Logger
	locks           *contextLocks
	defaultCurrency string
}

// NewContextUseCase creates a new ContextUseCase. publisher and metrics may be nil.
func NewContextUseCase(
	txManager TransactionManager,
	contextRepo ContextRepository,
	idGen IDGenerator,
	publisher EventPublisher,
	metrics MetricsRecorder,
	logger zerolog.Logger,
	defaultCurrency string,
) *ContextUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	return &ContextUseCase{
		txManager:       txManager,
		contextRepo:     contextRepo,
		idGen:           idGen,
		publisher:       publisher,
		metrics:         metrics,
		logger:          logger,
		locks:           newContextLocks(),
		defaultCurrency: defaultCurrency,
	}
}

// CreateFriendInput represents input for linking two users.
type CreateFriendInput struct {
	Me       domain.Member
	Friend   domain.Member
	Currency string
}

// CreateFriend returns the friend context between two users, creating it if
// it does not exist yet.
func (uc *ContextUseCase) CreateFriend(ctx context.Context, input CreateFriendInput) (*domain.LedgerContext, bool, error) {
	if input.Me.UserID == input.Friend.UserID {
		return nil, false, fmt.Errorf("%w: cannot befriend yourself", domain.ErrInvalidRoster)
	}

	existing, err := uc.contextRepo.FindFriend(ctx, input.Me.UserID, input.Friend.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	lc := &domain.LedgerContext{
		Type:     domain.ContextTypeFriend,
		Name:     strings.TrimSpace(input.Friend.Name),
		Currency: uc.currency(input.Currency),
		Members:  []domain.Member{input.Me, input.Friend},
	}

	if err := uc.create(ctx, lc); err != nil {
		return nil, false, err
	}
	return lc, true, nil
}

// CreateGroupInput represents input for creating a group.
type CreateGroupInput struct {
	Name     string
	Currency string
	Creator  domain.Member
	Members  []domain.Member
}

// CreateGroup creates a group whose roster starts with the creator.
func (uc *ContextUseCase) CreateGroup(ctx context.Context, input CreateGroupInput) (*domain.LedgerContext, error) {
	members := []domain.Member{input.Creator}
	for _, m := range input.Members {
		if m.UserID == input.Creator.UserID {
			continue
		}
		members = append(members, m)
	}

	lc := &domain.LedgerContext{
		Type:     domain.ContextTypeGroup,
		Name:     strings.TrimSpace(input.Name),
		Currency: uc.currency(input.Currency),
		Members:  members,
	}

	if err := uc.create(ctx, lc); err != nil {
		return nil, err
	}
	return lc, nil
}

func (uc *ContextUseCase) currency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return uc.defaultCurrency
	}
	return c
}

func (uc *ContextUseCase) create(ctx context.Context, lc *domain.LedgerContext) error {
	now := time.Now().UTC()
	lc.ID = uc.idGen.Generate()
	lc.CreatedAt = now
	lc.UpdatedAt = now
	for i := range lc.Members {
		lc.Members[i].UserID = strings.TrimSpace(lc.Members[i].UserID)
		lc.Members[i].JoinedAt = now
	}

	if err := lc.Validate(); err != nil {
		return err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.contextRepo.Create(ctx, tx, lc); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	uc.metrics.ContextCreated(lc.Type)
	uc.publish(ctx, domain.NewContextEvent(uc.idGen.Generate(), domain.EventTypeContextCreated, lc, now))
	uc.logger.Info().Str("context_id", lc.ID).Str("type", string(lc.Type)).Msg("context created")

	return nil
}

// AddMembersInput represents input for extending a group roster.
type AddMembersInput struct {
	ContextID string
	ActorID   string
	Members   []domain.Member
}

// AddMembers appends members to a group roster. Friend rosters are fixed.
func (uc *ContextUseCase) AddMembers(ctx context.Context, input AddMembersInput) (*domain.LedgerContext, error) {
	if len(input.Members) == 0 {
		return nil, fmt.Errorf("%w: no members to add", domain.ErrInvalidRoster)
	}

	unlock := uc.locks.Lock(input.ContextID)
	defer unlock()

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

	if lc.Type != domain.ContextTypeGroup {
		return nil, domain.ErrNotGroupContext
	}

	now := time.Now().UTC()
	added := make([]domain.Member, 0, len(input.Members))
	for _, m := range input.Members {
		m.UserID = strings.TrimSpace(m.UserID)
		m.JoinedAt = now
		added = append(added, m)
	}

	candidate := *lc
	candidate.Members = append(append([]domain.Member(nil), lc.Members...), added...)
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	if err := uc.contextRepo.AddMembers(ctx, tx, lc.ID, added); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.publish(ctx, domain.NewContextEvent(uc.idGen.Generate(), domain.EventTypeMembersAdded, &candidate, now))

	return &candidate, nil
}

// GetContext returns a context visible to actorID.
func (uc *ContextUseCase) GetContext(ctx context.Context, contextID, actorID string) (*domain.LedgerContext, error) {
	lc, err := loadContext(ctx, uc.contextRepo, contextID, actorID)
	if errors.Is(err, domain.ErrForbidden) {
		return nil, domain.ErrContextNotFound
	}
	return lc, err
}

// ListContexts returns every context userID is a member of.
func (uc *ContextUseCase) ListContexts(ctx context.Context, userID string) ([]*domain.LedgerContext, error) {
	return uc.contextRepo.ListByMember(ctx, userID)
}

// Roster returns the members of a context.
func (uc *ContextUseCase) Roster(ctx context.Context, contextID, actorID string) ([]domain.Member, error) {
	lc, err := uc.GetContext(ctx, contextID, actorID)
	if err != nil {
		return nil, err
	}
	return lc.Members, nil
}

func (uc *ContextUseCase) publish(ctx context.Context, event *domain.Event) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn().Err(err).Str("event_type", event.EventType).Msg("failed to publish context event")
	}
}
