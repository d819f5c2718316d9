package dto

import (
	"errors"
	"testing"

	"github.com/iho/splitledger/internal/domain"
)

func testGroup() *domain.LedgerContext {
	return &domain.LedgerContext{
		ID:       "grp-1",
		Type:     domain.ContextTypeGroup,
		Currency: "EUR",
		Members: []domain.Member{
			{UserID: "ana", Name: "Ana"},
			{UserID: "bea", Name: "Bea"},
			{UserID: "caio", Name: "Caio"},
		},
	}
}

func TestCreateFriendRequest_ToUseCaseInput(t *testing.T) {
	req := &CreateFriendRequest{Friend: MemberRequest{UserID: " bob ", Name: "Bob"}, Currency: "usd"}

	got := req.ToUseCaseInput(domain.Session{UserID: "me", Name: "Me"})
	if got.Me.UserID != "me" || got.Me.Name != "Me" {
		t.Fatalf("unexpected me %+v", got.Me)
	}
	if got.Friend.UserID != "bob" || got.Friend.Name != "Bob" || got.Currency != "usd" {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestCreateGroupRequest_ToUseCaseInput(t *testing.T) {
	req := &CreateGroupRequest{
		Name:    "Flat",
		MyName:  "Ana A.",
		Members: []MemberRequest{{UserID: "bea"}, {UserID: "caio", Name: "Caio"}},
	}

	got := req.ToUseCaseInput(domain.Session{UserID: "ana", Name: "Ana"})
	if got.Creator.Name != "Ana A." {
		t.Fatalf("expected my_name to win over session name, got %q", got.Creator.Name)
	}
	if len(got.Members) != 2 || got.Members[1].UserID != "caio" {
		t.Fatalf("unexpected members %+v", got.Members)
	}
}

func TestAppendEntryRequest_ExpenseSplitEqually(t *testing.T) {
	req := &AppendEntryRequest{Kind: "expense", Date: "2024-05-01", Amount: "10.00", Title: "Pizza"}

	draft, err := req.ToDraft(testGroup(), "bea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := domain.BuildEntry(draft)
	if err != nil {
		t.Fatalf("draft does not build: %v", err)
	}
	if entry.PayerID != "bea" || entry.Amount != 1000 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	want := map[string]domain.Amount{"ana": 334, "bea": 333, "caio": 333}
	for id, share := range want {
		p, ok := entry.Participant(id)
		if !ok || p.Share != share {
			t.Fatalf("expected %s share %d, got %+v", id, share, p)
		}
	}
	if p, _ := entry.Participant("bea"); p.Paid != 1000 || p.Name != "Bea" {
		t.Fatalf("expected bea to pay everything, got %+v", p)
	}
}

func TestAppendEntryRequest_ExpenseSplitWith(t *testing.T) {
	req := &AppendEntryRequest{Kind: "expense", Date: "2024-05-01", AmountMinor: 900, PayerID: "ana", SplitWith: []string{"ana", "caio"}}

	draft, err := req.ToDraft(testGroup(), "bea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err := domain.BuildEntry(draft)
	if err != nil {
		t.Fatalf("draft does not build: %v", err)
	}
	if len(entry.Participants) != 2 {
		t.Fatalf("expected two participants, got %+v", entry.Participants)
	}

	req.SplitWith = []string{"ana", "zed"}
	if _, err := req.ToDraft(testGroup(), "bea"); !errors.Is(err, domain.ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}

func TestAppendEntryRequest_ExplicitParticipants(t *testing.T) {
	req := &AppendEntryRequest{
		Kind:        "expense",
		Date:        "2024-05-02",
		AmountMinor: 500,
		PayerID:     "ana",
		Participants: []ParticipantRequest{
			{UserID: "ana", PaidMinor: 500, ShareMinor: 100},
			{UserID: "bea", ShareMinor: 400},
		},
	}

	draft, err := req.ToDraft(testGroup(), "ana")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err := domain.BuildEntry(draft)
	if err != nil {
		t.Fatalf("draft does not build: %v", err)
	}
	if p, _ := entry.Participant("bea"); p.Share != 400 || p.Name != "Bea" {
		t.Fatalf("unexpected participant %+v", p)
	}
}

func TestAppendEntryRequest_PaymentAndAdjustment(t *testing.T) {
	payment := &AppendEntryRequest{
		Kind:       "payment",
		Date:       "2024-05-03",
		Recipients: []RecipientRequest{{UserID: "ana", Amount: "12,50"}, {UserID: "caio", AmountMinor: 250}},
	}

	draft, err := payment.ToDraft(testGroup(), "bea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err := domain.BuildEntry(draft)
	if err != nil {
		t.Fatalf("payment does not build: %v", err)
	}
	if entry.Amount != 1500 || entry.PayerID != "bea" {
		t.Fatalf("unexpected payment %+v", entry)
	}

	adjustment := &AppendEntryRequest{
		Kind: "adjustment",
		Date: "2024-05-03",
		Lines: []AdjustmentLineRequest{
			{CounterpartID: "ana", Direction: "owed_to_me", ValueMinor: 300},
			{CounterpartID: "caio", Direction: "i_owe", ValueMinor: 100},
		},
	}

	draft, err = adjustment.ToDraft(testGroup(), "bea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err = domain.BuildEntry(draft)
	if err != nil {
		t.Fatalf("adjustment does not build: %v", err)
	}
	if entry.AuthorID != "bea" || len(entry.Adjustments) != 2 {
		t.Fatalf("unexpected adjustment %+v", entry)
	}
}

func TestAppendEntryRequest_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  AppendEntryRequest
		want error
	}{
		{"unknown kind", AppendEntryRequest{Kind: "refund", Date: "2024-01-01"}, domain.ErrInvalidKind},
		{"bad date", AppendEntryRequest{Kind: "expense", Date: "01/01/2024"}, domain.ErrInvalidDate},
		{"too many decimals", AppendEntryRequest{Kind: "expense", Date: "2024-01-01", Amount: "1.005"}, domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.ToDraft(testGroup(), "ana")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}
