package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/balance"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// EntryService defines the behavior needed by EntryHandler.
type EntryService interface {
	AppendEntry(ctx context.Context, input usecase.AppendEntryInput) (*domain.Entry, error)
	ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.Entry, error)
	ListSections(ctx context.Context, input usecase.ListEntriesInput) ([]balance.Section, error)
	GetEntry(ctx context.Context, entryID, actorID string) (*domain.Entry, error)
}

// ContextLookup resolves a context visible to the caller.
type ContextLookup interface {
	GetContext(ctx context.Context, contextID, actorID string) (*domain.LedgerContext, error)
}

// EntryHandler handles entry-related HTTP requests.
type EntryHandler struct {
	entryUC  EntryService
	contexts ContextLookup
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entryUC EntryService, contexts ContextLookup) *EntryHandler {
	return &EntryHandler{entryUC: entryUC, contexts: contexts}
}

// Append appends an expense, payment or adjustment to a context.
func (h *EntryHandler) Append(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req dto.AppendEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lc, err := h.contexts.GetContext(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to get context", err)
		return
	}

	draft, err := req.ToDraft(lc, s.UserID)
	if err != nil {
		writeDomainError(w, "invalid entry", err)
		return
	}

	entry, err := h.entryUC.AppendEntry(r.Context(), usecase.AppendEntryInput{
		Draft:     draft,
		ContextID: lc.ID,
		ActorID:   s.UserID,
	})
	if err != nil {
		writeDomainError(w, "failed to append entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryViewFromDomain(entry, s.UserID, lc.Currency))
}

// List lists a context's entries, most recent date first.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	s, lc, input, ok := h.listInput(w, r)
	if !ok {
		return
	}

	entries, err := h.entryUC.ListEntries(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListEntriesResponse{
		Entries: dto.EntriesFromDomain(entries, s.UserID, lc.Currency),
		Total:   int64(len(entries)),
	})
}

// Sections lists a context's entries bucketed by date.
func (h *EntryHandler) Sections(w http.ResponseWriter, r *http.Request) {
	s, lc, input, ok := h.listInput(w, r)
	if !ok {
		return
	}

	sections, err := h.entryUC.ListSections(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SectionsFromDomain(sections, s.UserID, lc.Currency))
}

// Get retrieves an entry by ID.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	entry, err := h.entryUC.GetEntry(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to get entry", err)
		return
	}

	lc, err := h.contexts.GetContext(r.Context(), entry.ContextID, s.UserID)
	if err != nil {
		writeDomainError(w, "failed to get entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryViewFromDomain(entry, s.UserID, lc.Currency))
}

func (h *EntryHandler) listInput(w http.ResponseWriter, r *http.Request) (domain.Session, *domain.LedgerContext, usecase.ListEntriesInput, bool) {
	var input usecase.ListEntriesInput

	s, ok := requireSession(w, r)
	if !ok {
		return s, nil, input, false
	}

	since, err := parseSince(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid since parameter", err.Error())
		return s, nil, input, false
	}

	lc, err := h.contexts.GetContext(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to get context", err)
		return s, nil, input, false
	}

	input = usecase.ListEntriesInput{Since: since, ContextID: lc.ID, ActorID: s.UserID}
	return s, lc, input, true
}
