package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/balance"
	"github.com/iho/splitledger/internal/usecase"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	ContextNet(ctx context.Context, contextID, meID string) (*usecase.ContextBalance, error)
	Breakdown(ctx context.Context, contextID, actorID string) ([]balance.MemberBalance, error)
	Summary(ctx context.Context, contextID, actorID string) (*usecase.GroupSummary, error)
	Dashboard(ctx context.Context, meID string) (*usecase.Dashboard, error)
	FriendBalances(ctx context.Context, meID, query string) ([]usecase.ContextBalance, error)
}

// BalanceHandler serves nets, breakdowns and the dashboard.
type BalanceHandler struct {
	balanceUC BalanceService
	contexts  ContextLookup
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceUC BalanceService, contexts ContextLookup) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC, contexts: contexts}
}

// Net returns the caller's net in a context.
func (h *BalanceHandler) Net(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	cb, err := h.balanceUC.ContextNet(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(cb))
}

// Breakdown returns per-member totals of a context.
func (h *BalanceHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	lc, err := h.contexts.GetContext(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to get context", err)
		return
	}

	rows, err := h.balanceUC.Breakdown(r.Context(), lc.ID, s.UserID)
	if err != nil {
		writeDomainError(w, "failed to compute breakdown", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BreakdownFromDomain(lc.ID, lc.Currency, rows))
}

// Summary returns spending totals of a context.
func (h *BalanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	summary, err := h.balanceUC.Summary(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to compute summary", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SummaryFromDomain(summary))
}

// Dashboard returns the caller's totals across all contexts.
func (h *BalanceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	d, err := h.balanceUC.Dashboard(r.Context(), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to compute dashboard", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DashboardFromDomain(d))
}

// Friends lists friend balances, filtered by ?q= on the friend's name.
func (h *BalanceHandler) Friends(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	list, err := h.balanceUC.FriendBalances(r.Context(), s.UserID, r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, "failed to list friends", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(list))
}
