package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	CheckContext(ctx context.Context, contextID, actorID string) (*usecase.ConsistencyReport, error)
}

// LedgerHandler handles ledger audits.
type LedgerHandler struct {
	ledgerUC LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// CheckConsistency audits one context log. An inconsistent log answers 409
// with the report.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	report, err := h.ledgerUC.CheckContext(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		if errors.Is(err, usecase.ErrInconsistentLedger) && report != nil {
			writeJSON(w, http.StatusConflict, dto.ConsistencyFromDomain(report))
			return
		}
		writeDomainError(w, "failed to check consistency", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromDomain(report))
}
