package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of decimal places used when amounts leave the core.
const DisplayPlaces = 2

// Amount is a signed monetary value in minor units (cents for EUR/USD).
type Amount int64

// Abs returns the magnitude of the amount.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether the amount is less than zero.
func (a Amount) IsNegative() bool { return a < 0 }

// Decimal converts minor units into a major-unit decimal for the given currency.
// Unknown currencies are treated as having two minor digits.
func (a Amount) Decimal(currency string) decimal.Decimal {
	return decimal.New(int64(a), -CurrencyExponent(currency))
}

// Display returns the amount in major units rounded half-to-even at two places.
// This is the only place rounding happens; callers must not round again.
func (a Amount) Display(currency string) decimal.Decimal {
	return a.Decimal(currency).RoundBank(DisplayPlaces)
}

// Format renders the amount as a fixed two-decimal string, e.g. "12.50".
func (a Amount) Format(currency string) string {
	return a.Decimal(currency).StringFixedBank(DisplayPlaces)
}

// ParseAmount parses a user-entered major-unit string ("12.5", "12,50") into
// minor units. Values with more precision than the currency allows are rejected
// rather than rounded.
func ParseAmount(s, currency string) (Amount, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}

	if d.IsNegative() {
		return 0, fmt.Errorf("%w: amount cannot be negative", ErrInvalidAmount)
	}

	minor := d.Shift(CurrencyExponent(currency))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, s, CurrencyExponent(currency))
	}

	if minor.GreaterThan(decimal.NewFromInt(int64(MaxEntryAmount))) {
		return 0, fmt.Errorf("%w: maximum amount exceeded", ErrAmountTooLarge)
	}

	return Amount(minor.IntPart()), nil
}

// SumAmounts adds a list of amounts.
func SumAmounts(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
