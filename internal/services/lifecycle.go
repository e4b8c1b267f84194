package services

import (
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"

	"github.com/google/uuid"
)

// NewBudget is the budget factory. It validates the name, derives the end
// date from the period strategy, and returns an aggregate ready to persist
// at version 0.
func NewBudget(userID, name string, totalLimit core.Limit, input core.BudgetStrategyInput, startDate time.Time) (*core.Budget, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, core.ErrEmptyBudgetName
	}

	endDate, err := EndDateFor(input, startDate)
	if err != nil {
		return nil, err
	}

	return &core.Budget{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          trimmed,
		TotalLimit:    totalLimit,
		StartDate:     startDate,
		EndDate:       endDate,
		StrategyInput: input,
	}, nil
}

// RenewBudget builds the follow-up budget for an elapsed period: same name,
// total limit, strategy, and categories (with fresh ids), starting where
// the old budget ended. Deactivated budgets cannot be renewed.
func RenewBudget(old *core.Budget) (*core.Budget, error) {
	if !old.IsActive() {
		return nil, fmt.Errorf("%w: budget %s", core.ErrCannotRenewDeactivatedBudget, old.ID)
	}

	renewed, err := NewBudget(old.UserID, old.Name, old.TotalLimit, old.StrategyInput, old.EndDate)
	if err != nil {
		return nil, err
	}
	for _, c := range old.Categories {
		if _, err := renewed.AddCategory(c.Name, c.Limit); err != nil {
			return nil, fmt.Errorf("carry category %q: %w", c.Name, err)
		}
	}
	return renewed, nil
}

// DeactivateBudget stamps the deactivation instant from the clock and
// returns it. On an already deactivated budget it returns the existing
// instant without touching the aggregate.
func DeactivateBudget(budget *core.Budget, clock core.Clock) time.Time {
	if budget.DeactivationDate != nil {
		return *budget.DeactivationDate
	}
	now := clock.Now()
	budget.Deactivate(now)
	return now
}
