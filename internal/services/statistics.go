package services

import (
	"log/slog"
	"time"

	"bilancio/internal/core"

	"github.com/google/uuid"
)

// StatisticsCalculator derives a fresh statistics snapshot from a budget
// and its complete transaction history. Every calculation starts from zero
// accumulators; nothing is patched incrementally, which keeps snapshots
// immune to drift from partial updates at the cost of re-reading history.
type StatisticsCalculator struct {
	clock core.Clock
}

func NewStatisticsCalculator(clock core.Clock) *StatisticsCalculator {
	return &StatisticsCalculator{clock: clock}
}

// Calculate produces a new snapshot with a fresh id.
func (s *StatisticsCalculator) Calculate(budget *core.Budget, transactions []core.Transaction) core.StatisticsRecord {
	return s.calculate(uuid.NewString(), budget, transactions)
}

// Reproduce recalculates a snapshot after a transaction edit, reusing the
// previous record's id so the stored snapshot is replaced instead of
// accumulating. The caller restricts the transaction set to the edited
// transaction's date.
func (s *StatisticsCalculator) Reproduce(previousID string, budget *core.Budget, transactions []core.Transaction) core.StatisticsRecord {
	return s.calculate(previousID, budget, transactions)
}

type accumulator struct {
	income   core.Money
	expenses core.Money
	minDate  time.Time
	maxDate  time.Time
}

func newAccumulator(currency string) *accumulator {
	return &accumulator{income: core.Zero(currency), expenses: core.Zero(currency)}
}

func (a *accumulator) observe(t core.Transaction) bool {
	var (
		sum core.Money
		err error
	)
	switch t.Type {
	case core.Income:
		sum, err = a.income.Add(t.Amount)
		if err == nil {
			a.income = sum
		}
	case core.Expense:
		sum, err = a.expenses.Add(t.Amount)
		if err == nil {
			a.expenses = sum
		}
	default:
		return false
	}
	if err != nil {
		return false
	}
	if a.minDate.IsZero() || t.OccurredDate.Before(a.minDate) {
		a.minDate = t.OccurredDate
	}
	if a.maxDate.IsZero() || t.OccurredDate.After(a.maxDate) {
		a.maxDate = t.OccurredDate
	}
	return true
}

// balance is income minus expenses, a signed delta.
func (a *accumulator) balance() core.Money {
	delta, err := a.income.Subtract(a.expenses)
	if err != nil {
		return core.Zero(a.income.Currency)
	}
	return delta
}

// daysInRange is the inclusive day span of observed transactions, at least 1.
func (a *accumulator) daysInRange() int64 {
	if a.minDate.IsZero() || a.maxDate.IsZero() {
		return 1
	}
	days := int64(a.maxDate.Sub(a.minDate).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

func (s *StatisticsCalculator) calculate(recordID string, budget *core.Budget, transactions []core.Transaction) core.StatisticsRecord {
	now := s.clock.Now()
	currency := budget.Currency()

	overall := newAccumulator(currency)
	byCategory := make(map[string]*accumulator, len(budget.Categories))
	for _, c := range budget.Categories {
		byCategory[c.ID] = newAccumulator(currency)
	}

	for _, t := range transactions {
		if !overall.observe(t) {
			slog.Warn("Skipping transaction in statistics accumulation",
				"transaction_id", t.ID,
				"type", string(t.Type),
				"currency", t.Amount.Currency,
				"budget_currency", currency)
			continue
		}
		if acc, ok := byCategory[t.CategoryID]; ok {
			acc.observe(t)
		}
	}

	daysRemaining := remainingDays(now, budget.EndDate)

	record := core.StatisticsRecord{
		ID:                   recordID,
		UserID:               budget.UserID,
		BudgetID:             budget.ID,
		CurrentBalance:       overall.balance(),
		UsedLimit:            overall.expenses,
		DailyAverage:         safeDivide(overall.expenses, overall.daysInRange()),
		DailyAvailableAmount: dailyAvailable(budget.TotalLimit, overall.balance(), daysRemaining),
		CreationDate:         now,
		Categories:           make([]core.CategoryStatisticsRecord, 0, len(budget.Categories)),
	}

	for _, c := range budget.Categories {
		acc := byCategory[c.ID]
		record.Categories = append(record.Categories, core.CategoryStatisticsRecord{
			ID:                   uuid.NewString(),
			CategoryID:           c.ID,
			CurrentBalance:       acc.balance(),
			UsedLimit:            acc.expenses,
			DailyAverage:         safeDivide(acc.expenses, acc.daysInRange()),
			DailyAvailableAmount: dailyAvailable(c.Limit, acc.balance(), daysRemaining),
		})
	}

	return record
}

// remainingDays counts the days left in the budget period, inclusive of
// today, clamped to 1 once the period has elapsed.
func remainingDays(now, endDate time.Time) int64 {
	if now.After(endDate) {
		return 1
	}
	days := int64(endDate.Sub(now).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// dailyAvailable spreads the remaining headroom (limit plus the signed
// balance, floored at zero) over the days left in the period. Currency
// mismatches yield zero.
func dailyAvailable(limit core.Limit, balance core.Money, daysRemaining int64) core.Money {
	headroom, err := limit.Value.Add(balance)
	if err != nil {
		return core.Zero(limit.Value.Currency)
	}
	if headroom.IsNegative() {
		headroom = core.Zero(headroom.Currency)
	}
	return safeDivide(headroom, daysRemaining)
}

// safeDivide divides with half-up rounding and swallows every arithmetic
// failure into a zero amount. Statistics are always available: a snapshot
// with a zero figure beats no snapshot at all, so division errors never
// propagate out of the calculation.
func safeDivide(amount core.Money, days int64) core.Money {
	if days <= 0 {
		return core.Zero(amount.Currency)
	}
	result, err := amount.DivideBy(days)
	if err != nil {
		return core.Zero(amount.Currency)
	}
	return result
}
