// Package services provides the domain services around the budget
// aggregate: period end-date strategies, the statistics calculation
// engine, lifecycle transitions, and category removal transfer policies.
//
// Strategy dispatch uses a closed registry keyed by the strategy kind, so
// an unknown kind is a lookup failure rather than a silent default.
package services

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// PeriodStrategy computes a budget's end date from its start date and the
// strategy parameters. The end date is the last instant of the period: the
// first instant of the next period minus one second.
type PeriodStrategy interface {
	// Applicable reports whether this strategy handles the given input kind.
	Applicable(input core.BudgetStrategyInput) bool
	// CalculateEndDate derives the end date. It fails when handed an input
	// of the wrong kind.
	CalculateEndDate(input core.BudgetStrategyInput, start time.Time) (time.Time, error)
}

// MonthlyPeriodStrategy ends the budget one second before the same day of
// the following month. The day is clamped to the last day of that month,
// so a budget starting on January 31 runs until one second before
// February 28 (or 29) at the same time of day.
type MonthlyPeriodStrategy struct{}

func (MonthlyPeriodStrategy) Applicable(input core.BudgetStrategyInput) bool {
	return input.Kind == core.MonthlyStrategy
}

func (MonthlyPeriodStrategy) CalculateEndDate(input core.BudgetStrategyInput, start time.Time) (time.Time, error) {
	if input.Kind != core.MonthlyStrategy {
		return time.Time{}, fmt.Errorf("%w: monthly strategy received %q input",
			core.ErrInvalidStrategyParameter, input.Kind)
	}

	year, month := start.Year(), start.Month()+1 // time.Date normalizes December rollover
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, start.Location()).Day()
	day := start.Day()
	if day > lastDay {
		day = lastDay
	}
	next := time.Date(year, month, day,
		start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
	return next.Add(-time.Second), nil
}

// YearlyPeriodStrategy ends the budget one year after it starts.
type YearlyPeriodStrategy struct{}

func (YearlyPeriodStrategy) Applicable(input core.BudgetStrategyInput) bool {
	return input.Kind == core.YearlyStrategy
}

func (YearlyPeriodStrategy) CalculateEndDate(input core.BudgetStrategyInput, start time.Time) (time.Time, error) {
	if input.Kind != core.YearlyStrategy {
		return time.Time{}, fmt.Errorf("%w: yearly strategy received %q input",
			core.ErrInvalidStrategyParameter, input.Kind)
	}
	return start.AddDate(1, 0, 0).Add(-time.Second), nil
}

// periodStrategies is the closed dispatch table for period strategies.
var periodStrategies = map[core.StrategyKind]PeriodStrategy{
	core.MonthlyStrategy: MonthlyPeriodStrategy{},
	core.YearlyStrategy:  YearlyPeriodStrategy{},
}

// EndDateFor dispatches to the strategy matching the input kind.
func EndDateFor(input core.BudgetStrategyInput, start time.Time) (time.Time, error) {
	strategy, ok := periodStrategies[input.Kind]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown strategy kind %q",
			core.ErrInvalidStrategyParameter, input.Kind)
	}
	return strategy.CalculateEndDate(input, start)
}
