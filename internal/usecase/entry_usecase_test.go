package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/iho/splitledger/internal/balance"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
	"github.com/iho/splitledger/internal/usecase/mocks"
)

func TestEntryUseCase_AppendEntry(t *testing.T) {
	e := newEnv(t)
	lc := e.group(t, "ana", "bea", "caio")
	uc := e.entryUC()

	entry, err := uc.AppendEntry(context.Background(), usecase.AppendEntryInput{
		ContextID: lc.ID,
		ActorID:   "ana",
		Draft:     equalExpense(domain.NewDate(2024, 5, 1), 3600, "ana", "ana", "bea", "caio"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.ID == "" || entry.ContextID != lc.ID || entry.ContextType != domain.ContextTypeGroup {
		t.Fatalf("context fields not set: %+v", entry)
	}
	if entry.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", entry.Seq)
	}

	stored, err := e.contexts.GetByID(context.Background(), lc.ID)
	if err != nil {
		t.Fatalf("get context: %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("expected version 1, got %d", stored.Version)
	}

	list, err := uc.ListEntries(context.Background(), usecase.ListEntriesInput{ContextID: lc.ID, ActorID: "bea"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != entry.ID {
		t.Fatalf("expected appended entry in list, got %+v", list)
	}
}

func TestEntryUseCase_AppendEntry_RejectsBeforeStorage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no expectations: any storage call fails the test
	txm := mocks.NewMockTransactionManager(ctrl)
	contexts := mocks.NewMockContextRepository(ctrl)
	entries := mocks.NewMockEntryRepository(ctrl)
	ids := mocks.NewMockIDGenerator(ctrl)
	metrics := mocks.NewMockMetricsRecorder(ctrl)
	metrics.EXPECT().AppendFailed("validation").Times(2)

	uc := usecase.NewEntryUseCase(txm, contexts, entries, ids, usecase.WithMetrics(metrics))

	unbalanced := domain.ExpenseDraft{
		Date:    domain.NewDate(2024, 5, 1),
		Amount:  1000,
		PayerID: "a",
		Participants: []domain.Participant{
			{UserID: "a", Paid: 1000, Share: 500},
			{UserID: "b", Share: 400},
		},
	}
	_, err := uc.AppendEntry(context.Background(), usecase.AppendEntryInput{ContextID: "ctx", Draft: unbalanced})
	if !errors.Is(err, domain.ErrZeroSumViolation) {
		t.Fatalf("expected ErrZeroSumViolation, got %v", err)
	}

	single := domain.ExpenseDraft{
		Date:         domain.NewDate(2024, 5, 1),
		Amount:       1000,
		PayerID:      "a",
		Participants: []domain.Participant{{UserID: "a", Paid: 1000, Share: 1000}},
	}
	_, err = uc.AppendEntry(context.Background(), usecase.AppendEntryInput{ContextID: "ctx", Draft: single})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEntryUseCase_AppendEntry_ContextNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tx := mocks.NewMockTransaction(ctrl)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	txm := mocks.NewMockTransactionManager(ctrl)
	txm.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	contexts := mocks.NewMockContextRepository(ctrl)
	contexts.EXPECT().GetByIDForUpdate(gomock.Any(), tx, "missing").Return(nil, domain.ErrContextNotFound)

	uc := usecase.NewEntryUseCase(txm, contexts, mocks.NewMockEntryRepository(ctrl), mocks.NewMockIDGenerator(ctrl))

	_, err := uc.AppendEntry(context.Background(), usecase.AppendEntryInput{
		ContextID: "missing",
		Draft:     equalExpense(domain.NewDate(2024, 5, 1), 1000, "a", "a", "b"),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEntryUseCase_AppendEntry_UnknownParticipant(t *testing.T) {
	e := newEnv(t)
	lc := e.friend(t, "me", "bob")
	uc := e.entryUC()

	_, err := uc.AppendEntry(context.Background(), usecase.AppendEntryInput{
		ContextID: lc.ID,
		Draft:     equalExpense(domain.NewDate(2024, 5, 1), 1000, "me", "me", "eve"),
	})
	if !errors.Is(err, domain.ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}

	list, _ := e.entries.ListByContext(context.Background(), lc.ID, nil)
	if len(list) != 0 {
		t.Fatalf("rejected entry was stored: %+v", list)
	}
}

func TestEntryUseCase_AppendEntry_Forbidden(t *testing.T) {
	e := newEnv(t)
	lc := e.friend(t, "me", "bob")

	_, err := e.entryUC().AppendEntry(context.Background(), usecase.AppendEntryInput{
		ContextID: lc.ID,
		ActorID:   "eve",
		Draft:     equalExpense(domain.NewDate(2024, 5, 1), 1000, "me", "me", "bob"),
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestEntryUseCase_AppendEntry_InvalidatesCacheAndPublishes(t *testing.T) {
	e := newEnv(t)
	lc := e.friend(t, "me", "bob")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockBalanceCache(ctrl)
	publisher := mocks.NewMockEventPublisher(ctrl)

	gomock.InOrder(
		cache.EXPECT().InvalidateContext(gomock.Any(), lc.ID).Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev *domain.Event) error {
			if ev.EventType != domain.EventTypeEntryAppended || ev.AggregateID != lc.ID {
				t.Errorf("unexpected event %+v", ev)
			}
			return errors.New("broker down")
		}),
	)

	uc := e.entryUC(usecase.WithBalanceCache(cache), usecase.WithEventPublisher(publisher))

	// a failing publisher does not fail the append
	if _, err := uc.AppendEntry(context.Background(), usecase.AppendEntryInput{
		ContextID: lc.ID,
		Draft:     equalExpense(domain.NewDate(2024, 5, 1), 1000, "me", "me", "bob"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEntryUseCase_AppendEntry_UsesRetrier(t *testing.T) {
	e := newEnv(t)
	lc := e.friend(t, "me", "bob")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	retrier := mocks.NewMockRetrier(ctrl)
	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, op func() error) error {
		return op()
	})

	uc := e.entryUC(usecase.WithRetrier(retrier))
	if _, err := uc.AppendEntry(context.Background(), usecase.AppendEntryInput{
		ContextID: lc.ID,
		Draft:     equalExpense(domain.NewDate(2024, 5, 1), 1000, "me", "me", "bob"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEntryUseCase_ConcurrentAppendsSerialize(t *testing.T) {
	e := newEnv(t)
	lc := e.group(t, "a", "b", "c")
	uc := e.entryUC()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payer := []string{"a", "b", "c"}[i%3]
			_, err := uc.AppendEntry(context.Background(), usecase.AppendEntryInput{
				ContextID: lc.ID,
				Draft:     equalExpense(domain.NewDate(2024, 5, 1+i%5), 300, payer, "a", "b", "c"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	stored, _ := e.contexts.GetByID(context.Background(), lc.ID)
	if stored.Version != n {
		t.Fatalf("expected version %d, got %d", n, stored.Version)
	}

	list, _ := e.entries.ListByContext(context.Background(), lc.ID, nil)
	seen := make(map[int64]bool, n)
	for _, entry := range list {
		if seen[entry.Seq] {
			t.Fatalf("duplicate seq %d", entry.Seq)
		}
		seen[entry.Seq] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct entries, got %d", n, len(seen))
	}

	rows, err := balance.ComputeMemberBreakdown(list, stored.Members)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	var sum domain.Amount
	for _, r := range rows {
		sum += r.Net
	}
	if sum != 0 {
		t.Fatalf("expected nets to sum to zero, got %d", sum)
	}
}

func TestEntryUseCase_ListIsMonotonic(t *testing.T) {
	e := newEnv(t)
	lc := e.friend(t, "me", "bob")
	uc := e.entryUC()
	ctx := context.Background()

	var before []*domain.Entry
	for i := 0; i < 3; i++ {
		if _, err := uc.AppendEntry(ctx, usecase.AppendEntryInput{
			ContextID: lc.ID,
			Draft:     equalExpense(domain.NewDate(2024, 5, 3-i), 1000, "me", "me", "bob"),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}

		after, err := uc.ListEntries(ctx, usecase.ListEntriesInput{ContextID: lc.ID})
		if err != nil {
			t.Fatalf("list: %v", err)
		}

		byID := make(map[string]*domain.Entry, len(after))
		for _, entry := range after {
			byID[entry.ID] = entry
		}
		for _, old := range before {
			now, ok := byID[old.ID]
			if !ok {
				t.Fatalf("entry %s disappeared", old.ID)
			}
			if now.Amount != old.Amount || now.Seq != old.Seq {
				t.Fatalf("entry %s was altered", old.ID)
			}
		}
		before = after
	}
}

func TestEntryUseCase_GetEntry(t *testing.T) {
	e := newEnv(t)
	lc := e.friend(t, "me", "bob")
	uc := e.entryUC()
	ctx := context.Background()

	entry, err := uc.AppendEntry(ctx, usecase.AppendEntryInput{
		ContextID: lc.ID,
		Draft: domain.PaymentDraft{
			Date:       domain.NewDate(2024, 5, 1),
			PayerID:    "bob",
			Recipients: []domain.Recipient{{UserID: "me", Amount: 1800}},
		},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := uc.GetEntry(ctx, entry.ID, "me")
	if err != nil || got.Kind != domain.EntryKindPayment {
		t.Fatalf("expected payment, got %+v (%v)", got, err)
	}

	if _, err := uc.GetEntry(ctx, entry.ID, "eve"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected outsiders to get not found, got %v", err)
	}

	sections, err := uc.ListSections(ctx, usecase.ListEntriesInput{ContextID: lc.ID, ActorID: "me"})
	if err != nil || len(sections) != 1 {
		t.Fatalf("expected one section, got %d (%v)", len(sections), err)
	}
}
