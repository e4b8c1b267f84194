package core

import "time"

// StatisticsRecord is a derived snapshot of a budget's financial state.
// Records are recomputed wholesale from the full transaction history and
// never patched incrementally, so a snapshot is always internally
// consistent.
type StatisticsRecord struct {
	ID                   string
	UserID               string
	BudgetID             string
	CurrentBalance       Money
	DailyAvailableAmount Money
	DailyAverage         Money
	UsedLimit            Money
	CreationDate         time.Time
	Categories           []CategoryStatisticsRecord
}

// CategoryStatisticsRecord carries the same figures scoped to one category,
// in budget category order.
type CategoryStatisticsRecord struct {
	ID                   string
	CategoryID           string
	CurrentBalance       Money
	DailyAvailableAmount Money
	DailyAverage         Money
	UsedLimit            Money
}
