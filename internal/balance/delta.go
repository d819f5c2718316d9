// Package balance holds the pure balance computations over a context's entry
// log. Nothing here performs I/O or keeps state between calls.
package balance

import (
	"fmt"

	"github.com/iho/splitledger/internal/domain"
)

// Deltas maps a participant ID to its signed delta in one entry.
type Deltas map[string]domain.Amount

// Sum adds all deltas. It is zero for every valid entry.
func (d Deltas) Sum() domain.Amount {
	var total domain.Amount
	for _, v := range d {
		total += v
	}
	return total
}

// Delta returns the per-participant delta of a single entry. Entries whose
// deltas do not net to zero are rejected with domain.ErrZeroSumViolation.
func Delta(e *domain.Entry) (Deltas, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entry", domain.ErrValidation)
	}

	if len(e.Participants) < 2 {
		return nil, fmt.Errorf("%w: entry %s has %d", domain.ErrTooFewParticipants, e.ID, len(e.Participants))
	}

	var (
		d   Deltas
		err error
	)

	switch e.Kind {
	case domain.EntryKindExpense:
		d = expenseDelta(e)
	case domain.EntryKindPayment:
		d, err = paymentDelta(e)
	case domain.EntryKindAdjustment:
		d, err = adjustmentDelta(e)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, e.Kind)
	}
	if err != nil {
		return nil, err
	}

	if sum := d.Sum(); sum != 0 {
		return nil, fmt.Errorf("%w: entry %s sums to %d", domain.ErrZeroSumViolation, e.ID, sum)
	}

	return d, nil
}

func expenseDelta(e *domain.Entry) Deltas {
	d := make(Deltas, len(e.Participants))
	for _, p := range e.Participants {
		d[p.UserID] += p.Delta()
	}
	return d
}

// paymentDelta credits the payer with everything transferred and debits each
// counterpart with what it received.
func paymentDelta(e *domain.Entry) (Deltas, error) {
	if _, ok := e.Participant(e.PayerID); !ok {
		return nil, fmt.Errorf("%w: payer %q is not a participant", domain.ErrInvalidPayer, e.PayerID)
	}

	d := make(Deltas, len(e.Participants))
	for _, p := range e.Participants {
		if p.UserID == e.PayerID {
			continue
		}
		received := p.Share - p.Paid
		d[p.UserID] -= received
		d[e.PayerID] += received
	}
	return d, nil
}

// adjustmentDelta derives deltas from the author's lines rather than from the
// paid/share columns.
func adjustmentDelta(e *domain.Entry) (Deltas, error) {
	if len(e.Adjustments) == 0 {
		return nil, fmt.Errorf("%w: adjustment %s has no lines", domain.ErrInvalidAdjustment, e.ID)
	}

	d := make(Deltas, len(e.Adjustments)+1)
	for _, l := range e.Adjustments {
		if !l.Direction.IsValid() {
			return nil, fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidAdjustment, l.Direction)
		}
		d[e.AuthorID] += l.Signed()
		d[l.CounterpartID] -= l.Signed()
	}
	return d, nil
}
