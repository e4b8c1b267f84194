// Package core holds the budgeting domain: money arithmetic, the budget
// aggregate with its category invariants, transactions, and the derived
// statistics records.
//
// All monetary amounts are integer subunits (cents) in a single currency;
// decimal parsing and arithmetic never touch floating point.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is an immutable amount of a single currency, stored in subunits.
// All arithmetic requires matching currencies and returns a new value.
type Money struct {
	Amount   int64  // subunits (e.g. cents)
	Currency string // 3-letter uppercase code
}

// NewMoney builds a Money value, normalizing the currency to uppercase.
// The currency must be exactly three letters.
func NewMoney(amount int64, currency string) (Money, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if len(cur) != 3 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	for _, r := range cur {
		if r < 'A' || r > 'Z' {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
		}
	}
	return Money{Amount: amount, Currency: cur}, nil
}

// Zero returns a zero amount in the given currency. The currency is assumed
// to be already normalized (taken from an existing Money or Limit).
func Zero(currency string) Money {
	return Money{Amount: 0, Currency: currency}
}

// Mint converts a decimal major-unit amount ("12.34") into subunits.
//
// It accepts both dot and comma decimal separators and an optional leading
// sign. The amount is scaled by 100 with half-up rounding on the third
// decimal place, so Mint("1.005", "USD") yields 101 subunits. This is the
// single, deterministic decimal conversion used everywhere in the domain.
func Mint(amount, currency string) (Money, error) {
	m, err := NewMoney(0, currency)
	if err != nil {
		return Money{}, err
	}

	s := strings.TrimSpace(amount)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if intPart == "0" && fracPart == "" {
		if len(parts) == 2 {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	// Prevent overflow when scaling to subunits
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	// First two fractional digits are subunits; half-up rounding on the third
	var fracSubunits int64
	if len(fracPart) > 0 {
		fracSubunits = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracSubunits += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracSubunits++
			}
		}
	}

	subunits := iv*100 + fracSubunits
	if negative {
		subunits = -subunits
	}
	m.Amount = subunits
	return m, nil
}

// Add returns m + other. Fails with ErrCurrencyMismatch when currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Subtract returns m - other. Fails with ErrCurrencyMismatch when currencies differ.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// MultiplyBy returns m scaled by an integer factor.
func (m Money) MultiplyBy(factor int64) Money {
	return Money{Amount: m.Amount * factor, Currency: m.Currency}
}

// DivideBy returns m divided by an integer divisor, rounded half away from
// zero on the subunit amount. Dividing by zero fails with ErrDivisionByZero.
func (m Money) DivideBy(divisor int64) (Money, error) {
	if divisor == 0 {
		return Money{}, ErrDivisionByZero
	}
	quotient := m.Amount / divisor
	remainder := m.Amount % divisor
	if remainder != 0 {
		// half-up: round when twice the remainder reaches the divisor
		r2 := remainder * 2
		if r2 < 0 {
			r2 = -r2
		}
		d := divisor
		if d < 0 {
			d = -d
		}
		if r2 >= d {
			if (m.Amount < 0) != (divisor < 0) {
				quotient--
			} else {
				quotient++
			}
		}
	}
	return Money{Amount: quotient, Currency: m.Currency}, nil
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// String renders the amount in major units, e.g. "1354.50 USD".
func (m Money) String() string {
	sub := m.Amount
	sign := ""
	if sub < 0 {
		sign = "-"
		sub = -sub
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, sub/100, sub%100, m.Currency)
}
