package dto

import (
	"fmt"
	"strings"

	"github.com/iho/splitledger/internal/balance"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// MemberRequest names a user joining a roster.
type MemberRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

func (m MemberRequest) toDomain() domain.Member {
	return domain.Member{UserID: strings.TrimSpace(m.UserID), Name: strings.TrimSpace(m.Name)}
}

// CreateFriendRequest links the caller with another user.
type CreateFriendRequest struct {
	Friend   MemberRequest `json:"friend"`
	MyName   string        `json:"my_name,omitempty"`
	Currency string        `json:"currency,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateFriendRequest) ToUseCaseInput(s domain.Session) usecase.CreateFriendInput {
	return usecase.CreateFriendInput{
		Me:       domain.Member{UserID: s.UserID, Name: firstNonEmpty(r.MyName, s.Name)},
		Friend:   r.Friend.toDomain(),
		Currency: r.Currency,
	}
}

// CreateGroupRequest creates a group owned by the caller.
type CreateGroupRequest struct {
	Name     string          `json:"name"`
	Currency string          `json:"currency,omitempty"`
	MyName   string          `json:"my_name,omitempty"`
	Members  []MemberRequest `json:"members"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateGroupRequest) ToUseCaseInput(s domain.Session) usecase.CreateGroupInput {
	members := make([]domain.Member, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, m.toDomain())
	}
	return usecase.CreateGroupInput{
		Name:     r.Name,
		Currency: r.Currency,
		Creator:  domain.Member{UserID: s.UserID, Name: firstNonEmpty(r.MyName, s.Name)},
		Members:  members,
	}
}

// AddMembersRequest extends a group roster.
type AddMembersRequest struct {
	Members []MemberRequest `json:"members"`
}

// ToUseCaseInput converts to use case input.
func (r *AddMembersRequest) ToUseCaseInput(contextID, actorID string) usecase.AddMembersInput {
	members := make([]domain.Member, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, m.toDomain())
	}
	return usecase.AddMembersInput{ContextID: contextID, ActorID: actorID, Members: members}
}

// ParticipantRequest is one explicit expense row.
type ParticipantRequest struct {
	UserID     string `json:"user_id"`
	PaidMinor  int64  `json:"paid_minor"`
	ShareMinor int64  `json:"share_minor"`
}

// RecipientRequest is one counterpart of a payment.
type RecipientRequest struct {
	UserID      string `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Amount      string `json:"amount,omitempty"`
}

// AdjustmentLineRequest is one adjustment row from the author's side.
type AdjustmentLineRequest struct {
	CounterpartID string `json:"counterpart_id"`
	Direction     string `json:"direction"`
	ValueMinor    int64  `json:"value_minor"`
	Value         string `json:"value,omitempty"`
}

// AppendEntryRequest is an expense, payment or adjustment draft. Amounts may
// be given in minor units or as a major-unit string; the string wins.
type AppendEntryRequest struct {
	Kind     string `json:"kind"`
	Date     string `json:"date"`
	Title    string `json:"title,omitempty"`
	Note     string `json:"note,omitempty"`
	Category string `json:"category,omitempty"`

	// expense
	PayerID      string               `json:"payer_id,omitempty"`
	AmountMinor  int64                `json:"amount_minor,omitempty"`
	Amount       string               `json:"amount,omitempty"`
	Participants []ParticipantRequest `json:"participants,omitempty"`
	SplitWith    []string             `json:"split_with,omitempty"`

	// payment
	Recipients []RecipientRequest `json:"recipients,omitempty"`

	// adjustment
	Lines []AdjustmentLineRequest `json:"lines,omitempty"`
}

// ToDraft builds a domain draft against the context roster. An expense
// without explicit participants is split equally among SplitWith, or the
// whole roster when SplitWith is empty. The caller is the author of
// adjustments and the default payer.
func (r *AppendEntryRequest) ToDraft(lc *domain.LedgerContext, actorID string) (domain.Draft, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return nil, err
	}

	switch domain.EntryKind(r.Kind) {
	case domain.EntryKindExpense:
		return r.expenseDraft(lc, actorID, date)
	case domain.EntryKindPayment:
		return r.paymentDraft(lc, actorID, date)
	case domain.EntryKindAdjustment:
		return r.adjustmentDraft(lc, actorID, date)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, r.Kind)
	}
}

func (r *AppendEntryRequest) expenseDraft(lc *domain.LedgerContext, actorID string, date domain.Date) (domain.Draft, error) {
	amount, err := amountOf(r.Amount, r.AmountMinor, lc.Currency)
	if err != nil {
		return nil, err
	}

	payerID := firstNonEmpty(r.PayerID, actorID)

	var participants []domain.Participant
	if len(r.Participants) > 0 {
		for _, p := range r.Participants {
			m, _ := lc.Member(p.UserID)
			participants = append(participants, domain.Participant{
				UserID: p.UserID,
				Name:   m.Name,
				Paid:   domain.Amount(p.PaidMinor),
				Share:  domain.Amount(p.ShareMinor),
			})
		}
	} else {
		members := lc.Members
		if len(r.SplitWith) > 0 {
			members = make([]domain.Member, 0, len(r.SplitWith))
			for _, id := range r.SplitWith {
				m, ok := lc.Member(id)
				if !ok {
					return nil, fmt.Errorf("%w: %s", domain.ErrUnknownParticipant, id)
				}
				members = append(members, m)
			}
		}
		participants, err = balance.EqualExpenseParticipants(amount, payerID, members)
		if err != nil {
			return nil, err
		}
	}

	return domain.ExpenseDraft{
		Date:         date,
		Title:        r.Title,
		Note:         r.Note,
		Category:     r.Category,
		PayerID:      payerID,
		Participants: participants,
		Amount:       amount,
	}, nil
}

func (r *AppendEntryRequest) paymentDraft(lc *domain.LedgerContext, actorID string, date domain.Date) (domain.Draft, error) {
	payerID := firstNonEmpty(r.PayerID, actorID)
	payer, _ := lc.Member(payerID)

	recipients := make([]domain.Recipient, 0, len(r.Recipients))
	for _, rc := range r.Recipients {
		amount, err := amountOf(rc.Amount, rc.AmountMinor, lc.Currency)
		if err != nil {
			return nil, err
		}
		m, _ := lc.Member(rc.UserID)
		recipients = append(recipients, domain.Recipient{UserID: rc.UserID, Name: m.Name, Amount: amount})
	}

	return domain.PaymentDraft{
		Date:       date,
		Title:      r.Title,
		Note:       r.Note,
		PayerID:    payerID,
		PayerName:  payer.Name,
		Recipients: recipients,
	}, nil
}

func (r *AppendEntryRequest) adjustmentDraft(lc *domain.LedgerContext, actorID string, date domain.Date) (domain.Draft, error) {
	author, _ := lc.Member(actorID)

	lines := make([]domain.AdjustmentLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		value, err := amountOf(l.Value, l.ValueMinor, lc.Currency)
		if err != nil {
			return nil, err
		}
		m, _ := lc.Member(l.CounterpartID)
		lines = append(lines, domain.AdjustmentLine{
			CounterpartID:   l.CounterpartID,
			CounterpartName: m.Name,
			Direction:       domain.Direction(l.Direction),
			Value:           value,
		})
	}

	return domain.AdjustmentDraft{
		Date:       date,
		Title:      r.Title,
		Note:       r.Note,
		AuthorID:   actorID,
		AuthorName: author.Name,
		Lines:      lines,
	}, nil
}

func amountOf(major string, minor int64, currency string) (domain.Amount, error) {
	if strings.TrimSpace(major) != "" {
		return domain.ParseAmount(major, currency)
	}
	return domain.Amount(minor), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
