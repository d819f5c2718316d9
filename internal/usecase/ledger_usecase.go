package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/iho/splitledger/internal/balance"
	"github.com/iho/splitledger/internal/domain"
)

var (
	// ErrInconsistentLedger is returned when a stored context log breaks the zero-sum law.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: member nets do not sum to zero")
)

// LedgerUseCase audits stored context logs.
type LedgerUseCase struct {
	contextRepo ContextRepository
	entryRepo   EntryRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(contextRepo ContextRepository, entryRepo EntryRepository) *LedgerUseCase {
	return &LedgerUseCase{
		contextRepo: contextRepo,
		entryRepo:   entryRepo,
	}
}

// ConsistencyReport is the outcome of a context check.
type ConsistencyReport struct {
	ContextID  string
	Problems   []string
	EntryCount int
	Version    int64
	NetSum     domain.Amount
	Consistent bool
}

// CheckContext re-validates every stored entry of a context and verifies
// that member nets sum to zero and that the version matches the log length.
// A report is returned together with ErrInconsistentLedger when it fails.
func (uc *LedgerUseCase) CheckContext(ctx context.Context, contextID, actorID string) (*ConsistencyReport, error) {
	lc, err := loadContext(ctx, uc.contextRepo, contextID, actorID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByContext(ctx, lc.ID, nil)
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		ContextID:  lc.ID,
		EntryCount: len(entries),
		Version:    lc.Version,
	}

	valid := make([]*domain.Entry, 0, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("entry %s: %v", e.ID, err))
			continue
		}
		if err := lc.CheckRoster(e); err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("entry %s: %v", e.ID, err))
			continue
		}
		if e.ContextType != lc.Type {
			report.Problems = append(report.Problems, fmt.Sprintf("entry %s: %v", e.ID, domain.ErrContextTypeMismatch))
			continue
		}
		valid = append(valid, e)
	}

	rows, err := balance.ComputeMemberBreakdown(valid, lc.Members)
	if err != nil {
		report.Problems = append(report.Problems, err.Error())
	}
	for _, r := range rows {
		report.NetSum += r.Net
	}
	if report.NetSum != 0 {
		report.Problems = append(report.Problems, fmt.Sprintf("member nets sum to %d", report.NetSum))
	}

	if int64(len(entries)) != lc.Version {
		report.Problems = append(report.Problems, fmt.Sprintf("version %d but %d entries", lc.Version, len(entries)))
	}

	report.Consistent = len(report.Problems) == 0
	if !report.Consistent {
		return report, ErrInconsistentLedger
	}

	return report, nil
}
