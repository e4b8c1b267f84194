package export

import (
	"context"
	"time"
)

// Snapshot is the flattened view of a statistics record ready for export.
// Amounts are formatted decimal strings so adapters never redo money math.
type Snapshot struct {
	RecordID       string
	BudgetID       string
	BudgetName     string
	Currency       string
	CurrentBalance string
	UsedLimit      string
	DailyAverage   string
	DailyAvailable string
	CreatedAt      time.Time
	Categories     []CategoryLine
}

// CategoryLine is one category row of a snapshot.
type CategoryLine struct {
	CategoryName   string
	CurrentBalance string
	UsedLimit      string
	DailyAverage   string
	DailyAvailable string
}

// SnapshotAppender is the outbound port for snapshot export.
type SnapshotAppender interface {
	Append(ctx context.Context, s Snapshot) (rowRef string, err error)
}
