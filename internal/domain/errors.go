package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when an entry or context fails validation.
	// It is never corrected silently.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownParticipant is returned when an entry references a user that is
	// not on the context roster.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrNotFound is the parent of all lookup failures.
	ErrNotFound = errors.New("not found")

	// ErrTransport wraps failures surfaced by the remote API collaborator.
	ErrTransport = errors.New("transport error")
)

// Lookup errors
var (
	ErrContextNotFound = fmt.Errorf("context %w", ErrNotFound)
	ErrEntryNotFound   = fmt.Errorf("entry %w", ErrNotFound)
)

// Entry errors
var (
	ErrInvalidAmount         = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrAmountTooLarge        = fmt.Errorf("%w: amount exceeds maximum allowed", ErrValidation)
	ErrInvalidKind           = fmt.Errorf("%w: invalid entry kind", ErrValidation)
	ErrInvalidDate           = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrTooFewParticipants    = fmt.Errorf("%w: entry needs at least two participants", ErrValidation)
	ErrDuplicateParticipant  = fmt.Errorf("%w: duplicate participant", ErrValidation)
	ErrZeroSumViolation      = fmt.Errorf("%w: deltas do not sum to zero", ErrValidation)
	ErrPaidMismatch          = fmt.Errorf("%w: paid amounts do not add up to the entry amount", ErrValidation)
	ErrInvalidPayer          = fmt.Errorf("%w: invalid payer", ErrValidation)
	ErrInvalidAdjustment     = fmt.Errorf("%w: invalid adjustment", ErrValidation)
	ErrInvalidTitle          = fmt.Errorf("%w: invalid title", ErrValidation)
	ErrContextTypeMismatch   = fmt.Errorf("%w: entry context type does not match", ErrValidation)
	ErrNotGroupContext       = fmt.Errorf("%w: operation requires a group context", ErrValidation)
	ErrInvalidContextName    = fmt.Errorf("%w: invalid context name", ErrValidation)
	ErrInvalidCurrency       = fmt.Errorf("%w: invalid currency code", ErrValidation)
	ErrInvalidRoster         = fmt.Errorf("%w: invalid roster", ErrValidation)
	ErrMemberAlreadyInRoster = fmt.Errorf("%w: member already in roster", ErrValidation)
)
