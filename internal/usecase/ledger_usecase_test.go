package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

func TestLedgerUseCase_CheckContext_Consistent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lc := e.group(t, "a", "b", "c")

	uc := e.entryUC()
	for i := 0; i < 3; i++ {
		if _, err := uc.AppendEntry(ctx, usecase.AppendEntryInput{
			ContextID: lc.ID,
			Draft:     equalExpense(domain.NewDate(2024, 2, 1+i), 900, "b", "a", "b", "c"),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	ledger := usecase.NewLedgerUseCase(e.contexts, e.entries)
	report, err := ledger.CheckContext(ctx, lc.ID, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Consistent || report.EntryCount != 3 || report.Version != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestLedgerUseCase_CheckContext_DetectsCorruption(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lc := e.friend(t, "me", "bob")

	// write an unbalanced entry straight to storage, bypassing validation
	tx, _ := e.txm.Begin(ctx)
	err := e.entries.Create(ctx, tx, &domain.Entry{
		ID:          "bad",
		ContextID:   lc.ID,
		ContextType: domain.ContextTypeFriend,
		Kind:        domain.EntryKindExpense,
		Date:        domain.NewDate(2024, 2, 1),
		Amount:      1000,
		PayerID:     "me",
		CreatedAt:   time.Now(),
		Participants: []domain.Participant{
			{UserID: "me", Paid: 1000, Share: 100},
			{UserID: "bob", Share: 100},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = tx.Commit(ctx)

	ledger := usecase.NewLedgerUseCase(e.contexts, e.entries)
	report, err := ledger.CheckContext(ctx, lc.ID, "")
	if !errors.Is(err, usecase.ErrInconsistentLedger) {
		t.Fatalf("expected ErrInconsistentLedger, got %v", err)
	}
	if report == nil || report.Consistent || len(report.Problems) < 2 {
		t.Fatalf("expected entry and version problems, got %+v", report)
	}
}

func TestLedgerUseCase_CheckContext_NotFound(t *testing.T) {
	e := newEnv(t)

	_, err := usecase.NewLedgerUseCase(e.contexts, e.entries).CheckContext(context.Background(), "nope", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
