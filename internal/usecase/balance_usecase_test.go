package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
	"github.com/iho/splitledger/internal/usecase/mocks"
)

func TestBalanceUseCase_ContextNet_FriendAndGroup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	entries := e.entryUC()

	friend := e.friend(t, "me", "bob")
	group := e.group(t, "me", "ana", "leo")

	appends := []usecase.AppendEntryInput{
		{ContextID: friend.ID, Draft: equalExpense(domain.NewDate(2024, 1, 1), 5000, "me", "me", "bob")},
		{ContextID: friend.ID, Draft: domain.PaymentDraft{
			Date:       domain.NewDate(2024, 1, 2),
			PayerID:    "bob",
			Recipients: []domain.Recipient{{UserID: "me", Amount: 1000}},
		}},
		{ContextID: group.ID, Draft: equalExpense(domain.NewDate(2024, 1, 3), 9000, "ana", "me", "ana", "leo")},
	}
	for _, in := range appends {
		if _, err := entries.AppendEntry(ctx, in); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	uc := usecase.NewBalanceUseCase(e.contexts, e.entries, nil, nil, zerolog.Nop(), "EUR")

	fb, err := uc.ContextNet(ctx, friend.ID, "me")
	if err != nil {
		t.Fatalf("friend net: %v", err)
	}
	if fb.Net != 1500 {
		t.Fatalf("expected friend net 1500, got %d", fb.Net)
	}
	if fb.Counterpart == nil || fb.Counterpart.UserID != "bob" {
		t.Fatalf("expected bob as counterpart, got %+v", fb.Counterpart)
	}

	gb, err := uc.ContextNet(ctx, group.ID, "me")
	if err != nil {
		t.Fatalf("group net: %v", err)
	}
	if gb.Net != -3000 || gb.Counterpart != nil {
		t.Fatalf("expected pooled group net -3000 without counterpart, got %+v", gb)
	}

	dash, err := uc.Dashboard(ctx, "me")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if totals := dash.TotalsFor("EUR"); totals.OwedToYou != 1500 || totals.Owes != 3000 || totals.NetGlobal != -1500 {
		t.Fatalf("unexpected totals %+v", dash.Totals)
	}
	if len(dash.Friends) != 1 || len(dash.Groups) != 1 {
		t.Fatalf("expected one friend and one group, got %d/%d", len(dash.Friends), len(dash.Groups))
	}

	rows, err := uc.Breakdown(ctx, group.ID, "leo")
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if rows[0].UserID != "ana" || rows[0].Net != 6000 {
		t.Fatalf("expected ana first with +6000, got %+v", rows[0])
	}

	summary, err := uc.Summary(ctx, group.ID, "me")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalSpent != 9000 || summary.ExpenseCount != 1 || summary.MemberCount != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if _, err := uc.ContextNet(ctx, group.ID, "bob"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-member, got %v", err)
	}
}

func TestBalanceUseCase_ContextNet_CacheHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lc := &domain.LedgerContext{
		ID:      "ctx-1",
		Type:    domain.ContextTypeFriend,
		Members: []domain.Member{{UserID: "me"}, {UserID: "bob"}},
		Version: 7,
	}

	contexts := mocks.NewMockContextRepository(ctrl)
	contexts.EXPECT().GetByID(gomock.Any(), "ctx-1").Return(lc, nil)

	cache := mocks.NewMockBalanceCache(ctrl)
	cache.EXPECT().GetNet(gomock.Any(), "ctx-1", int64(7), "me").Return(domain.Amount(-250), true, nil)

	metrics := mocks.NewMockMetricsRecorder(ctrl)
	metrics.EXPECT().CacheLookup(true)

	// no entry repository expectations: a hit must not read the log
	uc := usecase.NewBalanceUseCase(contexts, mocks.NewMockEntryRepository(ctrl), cache, metrics, zerolog.Nop())

	cb, err := uc.ContextNet(context.Background(), "ctx-1", "me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.Net != -250 {
		t.Fatalf("expected cached -250, got %d", cb.Net)
	}
}

func TestBalanceUseCase_ContextNet_CacheMissStores(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lc := &domain.LedgerContext{
		ID:      "ctx-1",
		Type:    domain.ContextTypeFriend,
		Members: []domain.Member{{UserID: "me"}, {UserID: "bob"}},
		Version: 1,
	}
	entry, err := domain.NewExpense(equalExpense(domain.NewDate(2024, 1, 1), 1000, "me", "me", "bob"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	contexts := mocks.NewMockContextRepository(ctrl)
	contexts.EXPECT().GetByID(gomock.Any(), "ctx-1").Return(lc, nil)

	entries := mocks.NewMockEntryRepository(ctrl)
	entries.EXPECT().ListByContext(gomock.Any(), "ctx-1", nil).Return([]*domain.Entry{entry}, nil)

	cache := mocks.NewMockBalanceCache(ctrl)
	cache.EXPECT().GetNet(gomock.Any(), "ctx-1", int64(1), "me").Return(domain.Amount(0), false, errors.New("redis down"))
	cache.EXPECT().SetNet(gomock.Any(), "ctx-1", int64(1), "me", domain.Amount(500)).Return(nil)

	uc := usecase.NewBalanceUseCase(contexts, entries, cache, nil, zerolog.Nop(), "EUR")

	cb, err := uc.ContextNet(context.Background(), "ctx-1", "me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.Net != 500 {
		t.Fatalf("expected 500, got %d", cb.Net)
	}
}

func TestBalanceUseCase_FriendBalances(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, name := range []string{"Zoe", "alice", "Alberto"} {
		lc, _, err := e.ctxUC.CreateFriend(ctx, usecase.CreateFriendInput{
			Me:     domain.Member{UserID: "me", Name: "Me"},
			Friend: domain.Member{UserID: "id-" + name, Name: name},
		})
		if err != nil {
			t.Fatalf("create friend: %v", err)
		}
		if _, err := e.entryUC().AppendEntry(ctx, usecase.AppendEntryInput{
			ContextID: lc.ID,
			Draft:     equalExpense(domain.NewDate(2024, 1, 1), 2000, "me", "me", "id-"+name),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	e.group(t, "me", "id-alice")

	uc := usecase.NewBalanceUseCase(e.contexts, e.entries, nil, nil, zerolog.Nop(), "EUR")

	all, err := uc.FriendBalances(ctx, "me", "")
	if err != nil {
		t.Fatalf("friend balances: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected three friends, got %d", len(all))
	}
	if all[0].Counterpart.Name != "Alberto" || all[1].Counterpart.Name != "alice" || all[2].Counterpart.Name != "Zoe" {
		t.Fatalf("unexpected order: %s, %s, %s", all[0].Counterpart.Name, all[1].Counterpart.Name, all[2].Counterpart.Name)
	}
	for _, fb := range all {
		if fb.Net != 1000 {
			t.Fatalf("expected net 1000 with %s, got %d", fb.Counterpart.Name, fb.Net)
		}
	}

	filtered, err := uc.FriendBalances(ctx, "me", "AL")
	if err != nil {
		t.Fatalf("friend balances: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected two matches for 'AL', got %d", len(filtered))
	}
}

func TestBalanceUseCase_Dashboard_MixedCurrencies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	entries := e.entryUC()

	friend := e.friend(t, "me", "bob")
	trip, err := e.ctxUC.CreateGroup(ctx, usecase.CreateGroupInput{
		Name:     "Tokyo",
		Currency: "JPY",
		Creator:  domain.Member{UserID: "me", Name: "me"},
		Members:  []domain.Member{{UserID: "ana", Name: "ana"}},
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	appends := []usecase.AppendEntryInput{
		{ContextID: friend.ID, Draft: equalExpense(domain.NewDate(2024, 3, 1), 2000, "me", "me", "bob")},
		{ContextID: trip.ID, Draft: equalExpense(domain.NewDate(2024, 3, 2), 2000, "ana", "me", "ana")},
	}
	for _, in := range appends {
		if _, err := entries.AppendEntry(ctx, in); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	uc := usecase.NewBalanceUseCase(e.contexts, e.entries, nil, nil, zerolog.Nop(), "EUR")
	dash, err := uc.Dashboard(ctx, "me")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if len(dash.Totals) != 2 || dash.Totals[0].Currency != "EUR" || dash.Totals[1].Currency != "JPY" {
		t.Fatalf("expected EUR then JPY rows, got %+v", dash.Totals)
	}
	if eur := dash.TotalsFor("EUR"); eur.OwedToYou != 1000 || eur.Owes != 0 || eur.NetGlobal != 1000 {
		t.Fatalf("unexpected EUR totals %+v", eur)
	}
	if jpy := dash.TotalsFor("JPY"); jpy.Owes != 1000 || jpy.OwedToYou != 0 || jpy.NetGlobal != -1000 {
		t.Fatalf("unexpected JPY totals %+v", jpy)
	}
}

func TestBalanceUseCase_Dashboard_NoContextsUsesConfiguredCurrency(t *testing.T) {
	e := newEnv(t)

	uc := usecase.NewBalanceUseCase(e.contexts, e.entries, nil, nil, zerolog.Nop(), "GBP")
	dash, err := uc.Dashboard(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(dash.Totals) != 1 || dash.Totals[0].Currency != "GBP" || dash.Totals[0].NetGlobal != 0 {
		t.Fatalf("expected a single zero GBP row, got %+v", dash.Totals)
	}
}
