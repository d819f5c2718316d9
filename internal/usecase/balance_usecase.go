package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/splitledger/internal/balance"
	"github.com/iho/splitledger/internal/domain"
)

// BalanceUseCase serves nets, breakdowns and dashboard totals. Everything it
// returns is derived from the entry log; cached values are keyed by context
// version so an append always makes them unreachable.
type BalanceUseCase struct {
	contextRepo ContextRepository
	entryRepo   EntryRepository
	cache       BalanceCache
	metrics     MetricsRecorder
	logger      zerolog.Logger

	defaultCurrency string
}

// NewBalanceUseCase creates a new BalanceUseCase. cache and metrics may be nil.
func NewBalanceUseCase(
	contextRepo ContextRepository,
	entryRepo EntryRepository,
	cache BalanceCache,
	metrics MetricsRecorder,
	logger zerolog.Logger,
	defaultCurrency string,
) *BalanceUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	return &BalanceUseCase{
		contextRepo:     contextRepo,
		entryRepo:       entryRepo,
		cache:           cache,
		metrics:         metrics,
		logger:          logger,
		defaultCurrency: defaultCurrency,
	}
}

// ContextBalance is one context's net for the current user.
type ContextBalance struct {
	Context     *domain.LedgerContext
	Counterpart *domain.Member // friend contexts only
	Net         domain.Amount
}

// ContextNet returns meID's net in a context.
func (uc *BalanceUseCase) ContextNet(ctx context.Context, contextID, meID string) (*ContextBalance, error) {
	lc, err := loadContext(ctx, uc.contextRepo, contextID, meID)
	if err != nil {
		return nil, err
	}
	return uc.contextBalance(ctx, lc, meID)
}

func (uc *BalanceUseCase) contextBalance(ctx context.Context, lc *domain.LedgerContext, meID string) (*ContextBalance, error) {
	net, err := uc.net(ctx, lc, meID)
	if err != nil {
		return nil, err
	}

	cb := &ContextBalance{Context: lc, Net: net}
	if m, ok := lc.Counterpart(meID); ok {
		cb.Counterpart = &m
	}
	return cb, nil
}

func (uc *BalanceUseCase) net(ctx context.Context, lc *domain.LedgerContext, meID string) (domain.Amount, error) {
	if uc.cache != nil {
		net, ok, err := uc.cache.GetNet(ctx, lc.ID, lc.Version, meID)
		if err != nil {
			uc.logger.Warn().Err(err).Str("context_id", lc.ID).Msg("balance cache read failed")
		}
		uc.metrics.CacheLookup(ok)
		if ok {
			return net, nil
		}
	}

	entries, err := uc.entryRepo.ListByContext(ctx, lc.ID, nil)
	if err != nil {
		return 0, err
	}

	net, err := balance.ComputeNet(entries, meID)
	if err != nil {
		return 0, err
	}

	if uc.cache != nil {
		if err := uc.cache.SetNet(ctx, lc.ID, lc.Version, meID, net); err != nil {
			uc.logger.Warn().Err(err).Str("context_id", lc.ID).Msg("balance cache write failed")
		}
	}

	return net, nil
}

// Breakdown returns per-member totals, largest creditor first.
func (uc *BalanceUseCase) Breakdown(ctx context.Context, contextID, actorID string) ([]balance.MemberBalance, error) {
	lc, err := loadContext(ctx, uc.contextRepo, contextID, actorID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByContext(ctx, lc.ID, nil)
	if err != nil {
		return nil, err
	}

	return balance.ComputeMemberBreakdown(entries, lc.Members)
}

// GroupSummary is the group info view.
type GroupSummary struct {
	Context *domain.LedgerContext
	balance.GroupSummary
	MemberCount int
}

// Summary returns spending totals for a context.
func (uc *BalanceUseCase) Summary(ctx context.Context, contextID, actorID string) (*GroupSummary, error) {
	lc, err := loadContext(ctx, uc.contextRepo, contextID, actorID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByContext(ctx, lc.ID, nil)
	if err != nil {
		return nil, err
	}

	return &GroupSummary{
		Context:      lc,
		GroupSummary: balance.SummarizeGroup(entries),
		MemberCount:  len(lc.Members),
	}, nil
}

// CurrencyTotals are dashboard totals over the contexts kept in one currency.
type CurrencyTotals struct {
	Currency string
	balance.DashboardTotals
}

// Dashboard is the home screen of a user. Totals has one row per currency,
// the default currency first and the rest by code.
type Dashboard struct {
	Totals  []CurrencyTotals
	Friends []ContextBalance
	Groups  []ContextBalance
}

// TotalsFor returns the totals in currency, zero when no context uses it.
func (d *Dashboard) TotalsFor(currency string) balance.DashboardTotals {
	for _, t := range d.Totals {
		if t.Currency == currency {
			return t.DashboardTotals
		}
	}
	return balance.DashboardTotals{}
}

// Dashboard computes the net of every context meID belongs to and folds them
// into headline totals per currency. Nets in different currencies are never
// added together. Contexts are read concurrently.
func (uc *BalanceUseCase) Dashboard(ctx context.Context, meID string) (*Dashboard, error) {
	contexts, err := uc.contextRepo.ListByMember(ctx, meID)
	if err != nil {
		return nil, err
	}

	results := make([]*ContextBalance, len(contexts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	for i, lc := range contexts {
		g.Go(func() error {
			cb, err := uc.contextBalance(gctx, lc, meID)
			if err != nil {
				return err
			}
			results[i] = cb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type nets struct{ friends, groups []domain.Amount }
	byCurrency := map[string]*nets{uc.defaultCurrency: {}}

	d := &Dashboard{}
	for _, cb := range results {
		n, ok := byCurrency[cb.Context.Currency]
		if !ok {
			n = &nets{}
			byCurrency[cb.Context.Currency] = n
		}
		if cb.Context.Type == domain.ContextTypeFriend {
			d.Friends = append(d.Friends, *cb)
			n.friends = append(n.friends, cb.Net)
		} else {
			d.Groups = append(d.Groups, *cb)
			n.groups = append(n.groups, cb.Net)
		}
	}

	for currency, n := range byCurrency {
		d.Totals = append(d.Totals, CurrencyTotals{
			Currency:        currency,
			DashboardTotals: balance.ComputeDashboardTotals(n.friends, n.groups),
		})
	}
	sort.Slice(d.Totals, func(i, j int) bool {
		a, b := d.Totals[i].Currency, d.Totals[j].Currency
		if (a == uc.defaultCurrency) != (b == uc.defaultCurrency) {
			return a == uc.defaultCurrency
		}
		return a < b
	})

	return d, nil
}

// FriendBalances lists friend contexts with their nets, filtered by a
// case-insensitive match on the friend's name and ordered by name.
func (uc *BalanceUseCase) FriendBalances(ctx context.Context, meID, query string) ([]ContextBalance, error) {
	contexts, err := uc.contextRepo.ListByMember(ctx, meID)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))

	var (
		mu  sync.Mutex
		out []ContextBalance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	for _, lc := range contexts {
		if lc.Type != domain.ContextTypeFriend {
			continue
		}
		friend, ok := lc.Counterpart(meID)
		if !ok {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(friend.Name), query) {
			continue
		}

		g.Go(func() error {
			cb, err := uc.contextBalance(gctx, lc, meID)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, *cb)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Counterpart.Name), strings.ToLower(out[j].Counterpart.Name)
		if a != b {
			return a < b
		}
		return out[i].Context.ID < out[j].Context.ID
	})

	return out, nil
}
