package core

import "fmt"

// StrategyKind discriminates the budget period strategies.
type StrategyKind string

const (
	MonthlyStrategy StrategyKind = "monthly"
	YearlyStrategy  StrategyKind = "yearly"
)

// BudgetStrategyInput is the closed tagged union of period strategy
// parameters. StartDay is capped at 28 so every month can host it.
type BudgetStrategyInput struct {
	Kind       StrategyKind
	StartDay   int
	StartMonth int // yearly only
}

// NewMonthlyStrategyInput validates a monthly period starting on the given day.
func NewMonthlyStrategyInput(startDay int) (BudgetStrategyInput, error) {
	if startDay < 1 || startDay > 28 {
		return BudgetStrategyInput{}, fmt.Errorf("%w: start day %d must be between 1 and 28",
			ErrInvalidStrategyParameter, startDay)
	}
	return BudgetStrategyInput{Kind: MonthlyStrategy, StartDay: startDay}, nil
}

// NewYearlyStrategyInput validates a yearly period starting on the given
// month and day.
func NewYearlyStrategyInput(startMonth, startDay int) (BudgetStrategyInput, error) {
	if startMonth < 1 || startMonth > 12 {
		return BudgetStrategyInput{}, fmt.Errorf("%w: start month %d must be between 1 and 12",
			ErrInvalidStrategyParameter, startMonth)
	}
	if startDay < 1 || startDay > 28 {
		return BudgetStrategyInput{}, fmt.Errorf("%w: start day %d must be between 1 and 28",
			ErrInvalidStrategyParameter, startDay)
	}
	return BudgetStrategyInput{Kind: YearlyStrategy, StartMonth: startMonth, StartDay: startDay}, nil
}
