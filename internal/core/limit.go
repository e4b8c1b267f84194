package core

import "fmt"

// Limit is a non-negative spending ceiling in a single currency.
type Limit struct {
	Value Money
}

// NewLimit validates that the ceiling is not negative.
func NewLimit(value Money) (Limit, error) {
	if value.IsNegative() {
		return Limit{}, fmt.Errorf("%w: %s", ErrInvalidLimitValue, value)
	}
	return Limit{Value: value}, nil
}

// IsExceeded reports whether the given spending passes the ceiling.
// The spending must be in the limit's currency.
func (l Limit) IsExceeded(spending Money) (bool, error) {
	if spending.Currency != l.Value.Currency {
		return false, fmt.Errorf("%w: spending in %s against limit in %s",
			ErrInvalidLimitValue, spending.Currency, l.Value.Currency)
	}
	return spending.Amount > l.Value.Amount, nil
}

// RemainingAmount returns how much of the ceiling is left, floored at zero.
func (l Limit) RemainingAmount(spending Money) (Money, error) {
	if spending.Currency != l.Value.Currency {
		return Money{}, fmt.Errorf("%w: spending in %s against limit in %s",
			ErrInvalidLimitValue, spending.Currency, l.Value.Currency)
	}
	remaining, err := l.Value.Subtract(spending)
	if err != nil {
		return Money{}, err
	}
	if remaining.IsNegative() {
		return Zero(l.Value.Currency), nil
	}
	return remaining, nil
}
