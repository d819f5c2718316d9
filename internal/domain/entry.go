package domain

import (
	"time"
)

// EntryKind tags the variant of a ledger entry.
type EntryKind string

const (
	// EntryKindExpense is a shared cost fronted by one payer.
	EntryKindExpense EntryKind = "expense"
	// EntryKindPayment settles a debt by a direct transfer.
	EntryKindPayment EntryKind = "payment"
	// EntryKindAdjustment is a manual correction with an explicit direction per counterpart.
	EntryKindAdjustment EntryKind = "adjustment"
)

// IsValid reports whether k is a known kind.
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryKindExpense, EntryKindPayment, EntryKindAdjustment:
		return true
	}
	return false
}

// Direction is the side of an adjustment line as seen by its author.
type Direction string

const (
	// DirectionOwedToMe means the counterpart owes the author.
	DirectionOwedToMe Direction = "owed_to_me"
	// DirectionIOwe means the author owes the counterpart.
	DirectionIOwe Direction = "i_owe"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionOwedToMe || d == DirectionIOwe
}

// Participant is one user's stake in an entry.
type Participant struct {
	UserID string
	Name   string
	Paid   Amount // what the participant actually contributed
	Share  Amount // what the participant is responsible for
}

// Delta is Paid - Share. Positive means the participant is owed money.
func (p Participant) Delta() Amount {
	return p.Paid - p.Share
}

// AdjustmentLine is one counterpart row of an adjustment.
type AdjustmentLine struct {
	CounterpartID   string
	CounterpartName string
	Direction       Direction
	Value           Amount
}

// Signed returns the line value from the author's point of view.
func (l AdjustmentLine) Signed() Amount {
	if l.Direction == DirectionOwedToMe {
		return l.Value
	}
	return -l.Value
}

// Entry is an immutable ledger fact inside a context.
type Entry struct {
	CreatedAt    time.Time
	Date         Date
	ID           string
	ContextID    string
	ContextType  ContextType
	Kind         EntryKind
	Title        string
	Note         string
	Category     string
	PayerID      string
	AuthorID     string
	Participants []Participant
	Adjustments  []AdjustmentLine
	Amount       Amount
	Seq          int64
}

// Participant looks up a participant by user ID.
func (e *Entry) Participant(userID string) (Participant, bool) {
	for _, p := range e.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// ParticipantIDs returns participant user IDs in entry order.
func (e *Entry) ParticipantIDs() []string {
	ids := make([]string, len(e.Participants))
	for i, p := range e.Participants {
		ids[i] = p.UserID
	}
	return ids
}

// TotalPaid sums the paid column.
func (e *Entry) TotalPaid() Amount {
	var total Amount
	for _, p := range e.Participants {
		total += p.Paid
	}
	return total
}

// TotalDelta sums paid - share across participants. Valid entries return zero.
func (e *Entry) TotalDelta() Amount {
	var total Amount
	for _, p := range e.Participants {
		total += p.Delta()
	}
	return total
}
