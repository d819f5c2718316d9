package handler

import (
	"net/http"

	"github.com/iho/splitledger/internal/adapter/http/dto"
)

// AuthHandler exposes the authenticated session.
type AuthHandler struct{}

// NewAuthHandler creates a new auth handler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me returns who the caller is authenticated as.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, dto.SessionResponse{UserID: s.UserID, Email: s.Email, Name: s.Name})
}
