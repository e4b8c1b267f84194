package export

import (
	"bilancio/internal/core"
)

// FromRecord flattens a statistics record into an exportable snapshot.
// Category lines follow the record order; a category the budget no longer
// carries is labeled by its id.
func FromRecord(budget *core.Budget, record *core.StatisticsRecord) Snapshot {
	snapshot := Snapshot{
		RecordID:       record.ID,
		BudgetID:       record.BudgetID,
		BudgetName:     budget.Name,
		Currency:       budget.Currency(),
		CurrentBalance: record.CurrentBalance.String(),
		UsedLimit:      record.UsedLimit.String(),
		DailyAverage:   record.DailyAverage.String(),
		DailyAvailable: record.DailyAvailableAmount.String(),
		CreatedAt:      record.CreationDate,
		Categories:     make([]CategoryLine, 0, len(record.Categories)),
	}

	for _, c := range record.Categories {
		name := c.CategoryID
		if category, err := budget.CategoryByID(c.CategoryID); err == nil {
			name = category.Name.String()
		}
		snapshot.Categories = append(snapshot.Categories, CategoryLine{
			CategoryName:   name,
			CurrentBalance: c.CurrentBalance.String(),
			UsedLimit:      c.UsedLimit.String(),
			DailyAverage:   c.DailyAverage.String(),
			DailyAvailable: c.DailyAvailableAmount.String(),
		})
	}
	return snapshot
}
