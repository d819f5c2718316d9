package usecase_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/adapter/repository/memory"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

type seqIDGen struct {
	n atomic.Int64
}

func (g *seqIDGen) Generate() string {
	return fmt.Sprintf("id-%04d", g.n.Add(1))
}

type env struct {
	store    *memory.Store
	txm      *memory.TxManager
	contexts *memory.ContextRepository
	entries  *memory.EntryRepository
	ids      *seqIDGen
	ctxUC    *usecase.ContextUseCase
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.NewStore()
	e := &env{
		store:    store,
		txm:      memory.NewTxManager(store),
		contexts: memory.NewContextRepository(store),
		entries:  memory.NewEntryRepository(store),
		ids:      &seqIDGen{},
	}
	e.ctxUC = usecase.NewContextUseCase(e.txm, e.contexts, e.ids, nil, nil, zerolog.Nop(), "EUR")
	return e
}

func (e *env) entryUC(opts ...usecase.EntryOption) *usecase.EntryUseCase {
	return usecase.NewEntryUseCase(e.txm, e.contexts, e.entries, e.ids, opts...)
}

func (e *env) group(t *testing.T, ids ...string) *domain.LedgerContext {
	t.Helper()

	members := make([]domain.Member, len(ids))
	for i, id := range ids {
		members[i] = domain.Member{UserID: id, Name: id}
	}

	lc, err := e.ctxUC.CreateGroup(context.Background(), usecase.CreateGroupInput{
		Name:    "Trip",
		Creator: members[0],
		Members: members[1:],
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return lc
}

func (e *env) friend(t *testing.T, me, other string) *domain.LedgerContext {
	t.Helper()

	lc, _, err := e.ctxUC.CreateFriend(context.Background(), usecase.CreateFriendInput{
		Me:     domain.Member{UserID: me, Name: me},
		Friend: domain.Member{UserID: other, Name: other},
	})
	if err != nil {
		t.Fatalf("create friend: %v", err)
	}
	return lc
}

func equalExpense(date domain.Date, amount domain.Amount, payer string, ids ...string) domain.ExpenseDraft {
	n := domain.Amount(len(ids))
	parts := make([]domain.Participant, len(ids))
	for i, id := range ids {
		parts[i] = domain.Participant{UserID: id, Share: amount / n}
		if id == payer {
			parts[i].Paid = amount
		}
	}
	return domain.ExpenseDraft{Date: date, Title: "expense", Amount: amount, PayerID: payer, Participants: parts}
}
