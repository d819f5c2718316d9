package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// ContextService defines the behavior needed by ContextHandler.
type ContextService interface {
	CreateFriend(ctx context.Context, input usecase.CreateFriendInput) (*domain.LedgerContext, bool, error)
	CreateGroup(ctx context.Context, input usecase.CreateGroupInput) (*domain.LedgerContext, error)
	AddMembers(ctx context.Context, input usecase.AddMembersInput) (*domain.LedgerContext, error)
	GetContext(ctx context.Context, contextID, actorID string) (*domain.LedgerContext, error)
	ListContexts(ctx context.Context, userID string) ([]*domain.LedgerContext, error)
	Roster(ctx context.Context, contextID, actorID string) ([]domain.Member, error)
}

// ContextHandler handles friend and group HTTP requests.
type ContextHandler struct {
	contextUC ContextService
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(contextUC ContextService) *ContextHandler {
	return &ContextHandler{contextUC: contextUC}
}

// CreateFriend links the caller with another user. An existing pair is
// returned with 200 instead of 201.
func (h *ContextHandler) CreateFriend(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req dto.CreateFriendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lc, created, err := h.contextUC.CreateFriend(r.Context(), req.ToUseCaseInput(s))
	if err != nil {
		writeDomainError(w, "failed to create friend", err)
		return
	}

	resp := dto.ContextFromDomain(lc)
	resp.Created = &created

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// CreateGroup creates a group with the caller as first member.
func (h *ContextHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req dto.CreateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lc, err := h.contextUC.CreateGroup(r.Context(), req.ToUseCaseInput(s))
	if err != nil {
		writeDomainError(w, "failed to create group", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ContextFromDomain(lc))
}

// List lists the caller's contexts.
func (h *ContextHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	contexts, err := h.contextUC.ListContexts(r.Context(), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to list contexts", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListContextsResponse{
		Contexts: dto.ContextsFromDomain(contexts),
		Total:    int64(len(contexts)),
	})
}

// Get retrieves a context by ID.
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	lc, err := h.contextUC.GetContext(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to get context", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ContextFromDomain(lc))
}

// Roster returns the members of a context in roster order.
func (h *ContextHandler) Roster(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	members, err := h.contextUC.Roster(r.Context(), chi.URLParam(r, "id"), s.UserID)
	if err != nil {
		writeDomainError(w, "failed to get roster", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MembersFromDomain(members))
}

// AddMembers extends a group roster.
func (h *ContextHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req dto.AddMembersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lc, err := h.contextUC.AddMembers(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id"), s.UserID))
	if err != nil {
		writeDomainError(w, "failed to add members", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ContextFromDomain(lc))
}
