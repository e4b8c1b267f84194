package services

import (
	"context"
	"time"

	"bilancio/internal/core"
)

// Ports for the persistence adapters. Aggregates are loaded together with an
// optimistic version number; saves carry the expected version back and fail
// with core.ErrNotCompatibleVersion when another writer got there first. The
// aggregates themselves never see the version.
type (
	BudgetRepository interface {
		// FindBudget loads a budget with its categories.
		FindBudget(ctx context.Context, budgetID, userID string) (version int64, budget *core.Budget, err error)
		// SaveBudget inserts (expectedVersion 0) or updates the budget and
		// its categories as one unit.
		SaveBudget(ctx context.Context, budget *core.Budget, expectedVersion int64) error
		// FindBudgetByCategory loads the budget owning the given category.
		FindBudgetByCategory(ctx context.Context, categoryID, userID string) (version int64, budget *core.Budget, err error)
		// ListElapsedActive returns active budgets whose period ended at or
		// before the given instant. Used by the renewal processor.
		ListElapsedActive(ctx context.Context, now time.Time) ([]*core.Budget, error)
	}

	TransactionRepository interface {
		FindTransaction(ctx context.Context, transactionID, userID string) (version int64, transaction *core.Transaction, err error)
		SaveTransaction(ctx context.Context, transaction *core.Transaction, expectedVersion int64) error
		DeleteTransaction(ctx context.Context, transactionID string) error

		// FindByBudget returns every transaction recorded against the
		// budget's categories, oldest first.
		FindByBudget(ctx context.Context, budgetID string) ([]core.Transaction, error)
		// FindByBudgetAndDateRange restricts FindByBudget to transactions
		// occurred at or before end.
		FindByBudgetAndDateRange(ctx context.Context, budgetID string, end time.Time) ([]core.Transaction, error)
		FindByCategory(ctx context.Context, categoryID string) ([]core.Transaction, error)

		// SaveAll bulk-saves already-versioned transactions, bumping each
		// version by one. Used by the move-transactions transfer strategy.
		SaveAll(ctx context.Context, transactions []core.Transaction) error
		// DeleteByCategory bulk-deletes a removed category's transactions.
		DeleteByCategory(ctx context.Context, categoryID string) error
	}

	StatisticsRepository interface {
		// FindLatestByBudget returns the most recent snapshot for a budget.
		FindLatestByBudget(ctx context.Context, budgetID string) (*core.StatisticsRecord, error)
		// SaveRecord inserts a snapshot, replacing any stored snapshot with
		// the same id.
		SaveRecord(ctx context.Context, record *core.StatisticsRecord) error
	}
)
