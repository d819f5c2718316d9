package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Session identifies the current user for every balance computation. It is
// passed explicitly; nothing in the core reads the current user from globals.
type Session struct {
	UserID string
	Email  string
	Name   string
}

// Validate checks the fields decoded at the auth boundary.
func (s Session) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: session without user id", ErrUnauthorized)
	}

	if s.Email != "" {
		if err := ValidateEmail(s.Email); err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}

	return nil
}

// Authentication errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrForbidden    = errors.New("not a member of this context")
)
