package domain

import (
	"fmt"
	"strings"
)

// Draft is the user-supplied shape of a new entry. The set of implementations
// is closed: ExpenseDraft, PaymentDraft and AdjustmentDraft.
type Draft interface {
	Kind() EntryKind
	build() *Entry
}

// BuildEntry turns a draft into a validated entry without context fields.
func BuildEntry(d Draft) (*Entry, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: missing draft", ErrValidation)
	}

	e := d.build()
	e.Title = strings.TrimSpace(e.Title)
	e.Note = strings.TrimSpace(e.Note)
	e.Category = strings.TrimSpace(e.Category)

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// NewExpense builds a validated expense entry.
func NewExpense(d ExpenseDraft) (*Entry, error) { return BuildEntry(d) }

// NewPayment builds a validated payment entry.
func NewPayment(d PaymentDraft) (*Entry, error) { return BuildEntry(d) }

// NewAdjustment builds a validated adjustment entry.
func NewAdjustment(d AdjustmentDraft) (*Entry, error) { return BuildEntry(d) }

// ExpenseDraft describes a shared cost.
type ExpenseDraft struct {
	Date         Date
	Title        string
	Note         string
	Category     string
	PayerID      string
	Participants []Participant
	Amount       Amount
}

// Kind implements Draft.
func (ExpenseDraft) Kind() EntryKind { return EntryKindExpense }

func (d ExpenseDraft) build() *Entry {
	return &Entry{
		Kind:         EntryKindExpense,
		Date:         d.Date,
		Title:        d.Title,
		Note:         d.Note,
		Category:     d.Category,
		Amount:       d.Amount,
		PayerID:      d.PayerID,
		Participants: append([]Participant(nil), d.Participants...),
	}
}

// Recipient is one counterpart of a payment.
type Recipient struct {
	UserID string
	Name   string
	Amount Amount
}

// PaymentDraft describes a settlement from PayerID to one or more recipients.
type PaymentDraft struct {
	Date       Date
	Title      string
	Note       string
	PayerID    string
	PayerName  string
	Recipients []Recipient
}

// Kind implements Draft.
func (PaymentDraft) Kind() EntryKind { return EntryKindPayment }

func (d PaymentDraft) build() *Entry {
	var total Amount
	participants := make([]Participant, 0, len(d.Recipients)+1)
	participants = append(participants, Participant{UserID: d.PayerID, Name: d.PayerName})

	for _, r := range d.Recipients {
		total += r.Amount
		participants = append(participants, Participant{
			UserID: r.UserID,
			Name:   r.Name,
			Share:  r.Amount,
		})
	}
	participants[0].Paid = total

	return &Entry{
		Kind:         EntryKindPayment,
		Date:         d.Date,
		Title:        d.Title,
		Note:         d.Note,
		Amount:       total,
		PayerID:      d.PayerID,
		Participants: participants,
	}
}

// AdjustmentDraft describes a manual balance correction made by AuthorID.
type AdjustmentDraft struct {
	Date       Date
	Title      string
	Note       string
	AuthorID   string
	AuthorName string
	Lines      []AdjustmentLine
}

// Kind implements Draft.
func (AdjustmentDraft) Kind() EntryKind { return EntryKindAdjustment }

// AdjustmentTotals summarises an adjustment from the author's side.
type AdjustmentTotals struct {
	Plus  Amount // owed to the author
	Minus Amount // owed by the author
	Net   Amount
}

// Totals returns plus/minus/net for the draft lines.
func (d AdjustmentDraft) Totals() AdjustmentTotals {
	var t AdjustmentTotals
	for _, l := range d.Lines {
		if l.Direction == DirectionOwedToMe {
			t.Plus += l.Value
		} else {
			t.Minus += l.Value
		}
	}
	t.Net = t.Plus - t.Minus
	return t
}

func (d AdjustmentDraft) build() *Entry {
	author := Participant{UserID: d.AuthorID, Name: d.AuthorName}
	counterparts := make([]Participant, 0, len(d.Lines))

	for _, l := range d.Lines {
		cp := Participant{UserID: l.CounterpartID, Name: l.CounterpartName}
		if l.Direction == DirectionOwedToMe {
			author.Paid += l.Value
			cp.Share += l.Value
		} else {
			author.Share += l.Value
			cp.Paid += l.Value
		}
		counterparts = append(counterparts, cp)
	}

	participants := append([]Participant{author}, counterparts...)

	var amount Amount
	for _, p := range participants {
		amount += p.Paid
	}

	return &Entry{
		Kind:         EntryKindAdjustment,
		Date:         d.Date,
		Title:        d.Title,
		Note:         d.Note,
		Amount:       amount,
		AuthorID:     d.AuthorID,
		Participants: participants,
		Adjustments:  append([]AdjustmentLine(nil), d.Lines...),
	}
}
