package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants
const (
	MaxContextNameLength = 100
	MaxTitleLength       = 255
	MaxNoteLength        = 1024
	MaxParticipants      = 100
	MaxEntryAmount       = Amount(100_000_000_000) // one billion in major units of a two-digit currency
	DefaultCurrency      = "EUR"
)

// Minor-unit exponents (ISO 4217).
var currencyExponents = map[string]int32{
	"USD": 2, "EUR": 2, "GBP": 2, "JPY": 0,
	"CNY": 2, "AUD": 2, "CAD": 2, "CHF": 2,
	"SEK": 2, "NZD": 2, "KRW": 0, "SGD": 2,
	"NOK": 2, "MXN": 2, "INR": 2, "BRL": 2,
	"ZAR": 2, "TRY": 2, "HKD": 2, "DKK": 2,
	"PLN": 2, "ARS": 2, "CLP": 0, "COP": 2,
	"BHD": 3, "KWD": 3, "JOD": 3, "TND": 3,
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// CurrencyExponent returns the number of minor digits for a currency.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if _, ok := currencyExponents[currency]; !ok {
		return fmt.Errorf("%w: %s is not a supported ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateContextName validates a group name
func ValidateContextName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidContextName)
	}

	if len(name) > MaxContextNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidContextName, MaxContextNameLength)
	}

	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}

	return nil
}

// Validate checks the kind-specific shape of an entry and the zero-sum law.
// Roster membership is checked separately by LedgerContext.CheckRoster.
func (e *Entry) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}

	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidDate)
	}

	if len(e.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTitle, MaxTitleLength)
	}

	if len(e.Note) > MaxNoteLength {
		return fmt.Errorf("%w: note exceeds %d characters", ErrValidation, MaxNoteLength)
	}

	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	if e.Amount > MaxEntryAmount {
		return ErrAmountTooLarge
	}

	if err := e.validateParticipants(); err != nil {
		return err
	}

	if paid := e.TotalPaid(); paid != e.Amount {
		return fmt.Errorf("%w: paid %d, amount %d", ErrPaidMismatch, paid, e.Amount)
	}

	if sum := e.TotalDelta(); sum != 0 {
		return fmt.Errorf("%w: sum is %d", ErrZeroSumViolation, sum)
	}

	switch e.Kind {
	case EntryKindExpense:
		return e.validateExpense()
	case EntryKindPayment:
		return e.validatePayment()
	default:
		return e.validateAdjustment()
	}
}

func (e *Entry) validateParticipants() error {
	if len(e.Participants) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewParticipants, len(e.Participants))
	}

	if len(e.Participants) > MaxParticipants {
		return fmt.Errorf("%w: more than %d participants", ErrValidation, MaxParticipants)
	}

	seen := make(map[string]bool, len(e.Participants))
	for _, p := range e.Participants {
		if strings.TrimSpace(p.UserID) == "" {
			return fmt.Errorf("%w: participant without user id", ErrValidation)
		}
		if seen[p.UserID] {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.UserID)
		}
		seen[p.UserID] = true

		if p.Paid < 0 || p.Share < 0 {
			return fmt.Errorf("%w: negative paid or share for %s", ErrInvalidAmount, p.UserID)
		}
	}

	return nil
}

func (e *Entry) validateExpense() error {
	payer, ok := e.Participant(e.PayerID)
	if !ok {
		return fmt.Errorf("%w: payer %q is not a participant", ErrInvalidPayer, e.PayerID)
	}

	if !payer.Paid.IsPositive() {
		return fmt.Errorf("%w: payer %s paid nothing", ErrInvalidPayer, e.PayerID)
	}

	if len(e.Adjustments) > 0 {
		return fmt.Errorf("%w: expense cannot carry adjustment lines", ErrValidation)
	}

	return nil
}

func (e *Entry) validatePayment() error {
	payer, ok := e.Participant(e.PayerID)
	if !ok {
		return fmt.Errorf("%w: payer %q is not a participant", ErrInvalidPayer, e.PayerID)
	}

	if payer.Paid != e.Amount || payer.Share != 0 {
		return fmt.Errorf("%w: payer must pay the whole amount and owe nothing", ErrInvalidPayer)
	}

	for _, p := range e.Participants {
		if p.UserID == e.PayerID {
			continue
		}
		if p.Paid != 0 || !p.Share.IsPositive() {
			return fmt.Errorf("%w: counterpart %s must receive a positive amount", ErrInvalidAmount, p.UserID)
		}
	}

	if len(e.Adjustments) > 0 {
		return fmt.Errorf("%w: payment cannot carry adjustment lines", ErrValidation)
	}

	return nil
}

func (e *Entry) validateAdjustment() error {
	if _, ok := e.Participant(e.AuthorID); !ok {
		return fmt.Errorf("%w: author %q is not a participant", ErrInvalidAdjustment, e.AuthorID)
	}

	if len(e.Adjustments) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrInvalidAdjustment)
	}

	expected := make(map[string]Amount, len(e.Adjustments)+1)
	for _, l := range e.Adjustments {
		if !l.Direction.IsValid() {
			return fmt.Errorf("%w: unknown direction %q", ErrInvalidAdjustment, l.Direction)
		}
		if !l.Value.IsPositive() {
			return fmt.Errorf("%w: line value must be positive", ErrInvalidAdjustment)
		}
		if l.CounterpartID == e.AuthorID {
			return fmt.Errorf("%w: cannot adjust against yourself", ErrInvalidAdjustment)
		}
		if _, dup := expected[l.CounterpartID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, l.CounterpartID)
		}
		expected[l.CounterpartID] = -l.Signed()
		expected[e.AuthorID] += l.Signed()
	}

	if len(expected) != len(e.Participants) {
		return fmt.Errorf("%w: participants do not match adjustment lines", ErrInvalidAdjustment)
	}

	for _, p := range e.Participants {
		want, ok := expected[p.UserID]
		if !ok || want != p.Delta() {
			return fmt.Errorf("%w: participant %s disagrees with adjustment lines", ErrInvalidAdjustment, p.UserID)
		}
	}

	return nil
}
