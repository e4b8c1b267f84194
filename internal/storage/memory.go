package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bilancio/internal/core"
)

// MemoryRepository keeps every aggregate in process memory behind the same
// repository ports as the SQLite implementation. It backs the memory data
// backend and the service tests; versioning semantics match SQLite exactly.
type MemoryRepository struct {
	mu sync.Mutex

	budgets        map[string]*versionedBudget
	transactions   map[string]*versionedTransaction
	statistics     map[string]core.StatisticsRecord // by record id
	latestByBudget map[string]string                // budget id -> record id
}

type versionedBudget struct {
	version int64
	budget  core.Budget
}

type versionedTransaction struct {
	version     int64
	transaction core.Transaction
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		budgets:        make(map[string]*versionedBudget),
		transactions:   make(map[string]*versionedTransaction),
		statistics:     make(map[string]core.StatisticsRecord),
		latestByBudget: make(map[string]string),
	}
}

func cloneBudget(b core.Budget) *core.Budget {
	copied := b
	copied.Categories = append([]core.Category(nil), b.Categories...)
	if b.DeactivationDate != nil {
		d := *b.DeactivationDate
		copied.DeactivationDate = &d
	}
	return &copied
}

// FindBudget implements services.BudgetRepository.
func (r *MemoryRepository) FindBudget(_ context.Context, budgetID, userID string) (int64, *core.Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.budgets[budgetID]
	if !ok || stored.budget.UserID != userID {
		return 0, nil, fmt.Errorf("%w: %s", core.ErrBudgetNotFound, budgetID)
	}
	return stored.version, cloneBudget(stored.budget), nil
}

// FindBudgetByCategory implements services.BudgetRepository.
func (r *MemoryRepository) FindBudgetByCategory(_ context.Context, categoryID, userID string) (int64, *core.Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stored := range r.budgets {
		if stored.budget.UserID != userID {
			continue
		}
		for _, c := range stored.budget.Categories {
			if c.ID == categoryID {
				return stored.version, cloneBudget(stored.budget), nil
			}
		}
	}
	return 0, nil, fmt.Errorf("%w: no budget owns category %s", core.ErrBudgetNotFound, categoryID)
}

// SaveBudget implements services.BudgetRepository.
func (r *MemoryRepository) SaveBudget(_ context.Context, budget *core.Budget, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.budgets[budget.ID]
	switch {
	case !exists && expectedVersion != 0:
		return fmt.Errorf("%w: budget %s not stored yet", core.ErrNotCompatibleVersion, budget.ID)
	case exists && stored.version != expectedVersion:
		return fmt.Errorf("%w: expected %d, stored %d", core.ErrNotCompatibleVersion, expectedVersion, stored.version)
	}

	r.budgets[budget.ID] = &versionedBudget{
		version: expectedVersion + 1,
		budget:  *cloneBudget(*budget),
	}
	return nil
}

// ListElapsedActive implements services.BudgetRepository.
func (r *MemoryRepository) ListElapsedActive(_ context.Context, now time.Time) ([]*core.Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var elapsed []*core.Budget
	for _, stored := range r.budgets {
		if stored.budget.IsActive() && !stored.budget.EndDate.After(now) {
			elapsed = append(elapsed, cloneBudget(stored.budget))
		}
	}
	sort.Slice(elapsed, func(i, j int) bool { return elapsed[i].EndDate.Before(elapsed[j].EndDate) })
	return elapsed, nil
}

// FindTransaction implements services.TransactionRepository.
func (r *MemoryRepository) FindTransaction(_ context.Context, transactionID, userID string) (int64, *core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.transactions[transactionID]
	if !ok || stored.transaction.UserID != userID {
		return 0, nil, fmt.Errorf("%w: %s", core.ErrTransactionNotFound, transactionID)
	}
	copied := stored.transaction
	return stored.version, &copied, nil
}

// SaveTransaction implements services.TransactionRepository.
func (r *MemoryRepository) SaveTransaction(_ context.Context, transaction *core.Transaction, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.transactions[transaction.ID]
	switch {
	case !exists && expectedVersion != 0:
		return fmt.Errorf("%w: transaction %s not stored yet", core.ErrNotCompatibleVersion, transaction.ID)
	case exists && stored.version != expectedVersion:
		return fmt.Errorf("%w: expected %d, stored %d", core.ErrNotCompatibleVersion, expectedVersion, stored.version)
	}

	r.transactions[transaction.ID] = &versionedTransaction{
		version:     expectedVersion + 1,
		transaction: *transaction,
	}
	return nil
}

// DeleteTransaction implements services.TransactionRepository.
func (r *MemoryRepository) DeleteTransaction(_ context.Context, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transactions[transactionID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrTransactionNotFound, transactionID)
	}
	delete(r.transactions, transactionID)
	return nil
}

func (r *MemoryRepository) categoryIDsOf(budgetID string) map[string]struct{} {
	ids := make(map[string]struct{})
	if stored, ok := r.budgets[budgetID]; ok {
		for _, c := range stored.budget.Categories {
			ids[c.ID] = struct{}{}
		}
	}
	return ids
}

// FindByBudget implements services.TransactionRepository.
func (r *MemoryRepository) FindByBudget(_ context.Context, budgetID string) ([]core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByBudgetLocked(budgetID, nil), nil
}

// FindByBudgetAndDateRange implements services.TransactionRepository.
func (r *MemoryRepository) FindByBudgetAndDateRange(_ context.Context, budgetID string, end time.Time) ([]core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByBudgetLocked(budgetID, &end), nil
}

func (r *MemoryRepository) findByBudgetLocked(budgetID string, end *time.Time) []core.Transaction {
	categoryIDs := r.categoryIDsOf(budgetID)
	var result []core.Transaction
	for _, stored := range r.transactions {
		if _, ok := categoryIDs[stored.transaction.CategoryID]; !ok {
			continue
		}
		if end != nil && stored.transaction.OccurredDate.After(*end) {
			continue
		}
		result = append(result, stored.transaction)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredDate.Before(result[j].OccurredDate)
	})
	return result
}

// FindByCategory implements services.TransactionRepository.
func (r *MemoryRepository) FindByCategory(_ context.Context, categoryID string) ([]core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []core.Transaction
	for _, stored := range r.transactions {
		if stored.transaction.CategoryID == categoryID {
			result = append(result, stored.transaction)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredDate.Before(result[j].OccurredDate)
	})
	return result, nil
}

// SaveAll implements services.TransactionRepository.
func (r *MemoryRepository) SaveAll(_ context.Context, transactions []core.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range transactions {
		stored, ok := r.transactions[t.ID]
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrTransactionNotFound, t.ID)
		}
		r.transactions[t.ID] = &versionedTransaction{
			version:     stored.version + 1,
			transaction: t,
		}
	}
	return nil
}

// DeleteByCategory implements services.TransactionRepository.
func (r *MemoryRepository) DeleteByCategory(_ context.Context, categoryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, stored := range r.transactions {
		if stored.transaction.CategoryID == categoryID {
			delete(r.transactions, id)
		}
	}
	return nil
}

// FindLatestByBudget implements services.StatisticsRepository.
func (r *MemoryRepository) FindLatestByBudget(_ context.Context, budgetID string) (*core.StatisticsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recordID, ok := r.latestByBudget[budgetID]
	if !ok {
		return nil, fmt.Errorf("%w: budget %s", core.ErrStatisticsRecordNotFound, budgetID)
	}
	record := r.statistics[recordID]
	record.Categories = append([]core.CategoryStatisticsRecord(nil), record.Categories...)
	return &record, nil
}

// SaveRecord implements services.StatisticsRepository.
func (r *MemoryRepository) SaveRecord(_ context.Context, record *core.StatisticsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *record
	copied.Categories = append([]core.CategoryStatisticsRecord(nil), record.Categories...)
	r.statistics[record.ID] = copied
	r.latestByBudget[record.BudgetID] = record.ID
	return nil
}
