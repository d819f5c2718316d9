package balance

import (
	"fmt"

	"github.com/iho/splitledger/internal/domain"
)

// EqualSplit divides amount across memberIDs. The remainder is handed out one
// minor unit at a time to the first members.
func EqualSplit(amount domain.Amount, memberIDs []string) ([]domain.Amount, error) {
	n := domain.Amount(len(memberIDs))
	if n == 0 {
		return nil, fmt.Errorf("%w: no members to split between", domain.ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}

	base := amount / n
	remainder := amount % n

	shares := make([]domain.Amount, len(memberIDs))
	for i := range memberIDs {
		shares[i] = base
		if domain.Amount(i) < remainder {
			shares[i]++
		}
	}
	return shares, nil
}

// EqualExpenseParticipants builds expense participants for payerID paying the
// full amount, split equally across memberIDs. The payer is added if missing.
func EqualExpenseParticipants(amount domain.Amount, payerID string, members []domain.Member) ([]domain.Participant, error) {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}

	shares, err := EqualSplit(amount, ids)
	if err != nil {
		return nil, err
	}

	participants := make([]domain.Participant, 0, len(members)+1)
	payerSeen := false
	for i, m := range members {
		p := domain.Participant{UserID: m.UserID, Name: m.Name, Share: shares[i]}
		if m.UserID == payerID {
			p.Paid = amount
			payerSeen = true
		}
		participants = append(participants, p)
	}
	if !payerSeen {
		participants = append(participants, domain.Participant{UserID: payerID, Paid: amount})
	}

	return participants, nil
}
