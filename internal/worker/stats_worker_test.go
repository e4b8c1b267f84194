package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	exportmemory "bilancio/internal/export/memory"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

type workerFixture struct {
	repo     *storage.MemoryRepository
	exporter *exportmemory.Store
	worker   *StatsWorker
	budget   *core.Budget
	category core.Category
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	repo := storage.NewMemoryRepository()
	exporter := exportmemory.New()
	clock := core.FixedClock{Instant: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}
	calculator := services.NewStatisticsCalculator(clock)

	limit, err := core.NewLimit(core.Money{Amount: 100000, Currency: "EUR"})
	if err != nil {
		t.Fatalf("new limit: %v", err)
	}
	input, err := core.NewMonthlyStrategyInput(1)
	if err != nil {
		t.Fatalf("strategy input: %v", err)
	}
	budget, err := services.NewBudget("user-1", "Household", limit, input, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new budget: %v", err)
	}
	name, err := core.NewCategoryName("Groceries")
	if err != nil {
		t.Fatalf("category name: %v", err)
	}
	categoryLimit, err := core.NewLimit(core.Money{Amount: 40000, Currency: "EUR"})
	if err != nil {
		t.Fatalf("category limit: %v", err)
	}
	category, err := budget.AddCategory(name, categoryLimit)
	if err != nil {
		t.Fatalf("add category: %v", err)
	}
	if err := repo.SaveBudget(context.Background(), budget, 0); err != nil {
		t.Fatalf("save budget: %v", err)
	}

	return &workerFixture{
		repo:     repo,
		exporter: exporter,
		worker:   NewStatsWorker(repo, repo, repo, calculator, exporter, nil),
		budget:   budget,
		category: category,
	}
}

func (f *workerFixture) addTransaction(t *testing.T, id string, amount int64, day int) {
	t.Helper()

	transaction := &core.Transaction{
		ID:           id,
		CategoryID:   f.category.ID,
		UserID:       "user-1",
		Amount:       core.Money{Amount: amount, Currency: "EUR"},
		Type:         core.Expense,
		OccurredDate: time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC),
	}
	if err := f.repo.SaveTransaction(context.Background(), transaction, 0); err != nil {
		t.Fatalf("save transaction: %v", err)
	}
}

func TestHandleEventRecalculates(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	f.addTransaction(t, "txn-1", 2500, 5)

	event := amqp.NewEvent(amqp.EventTransactionAdded, f.budget.ID, "user-1").WithCategory(f.category.ID)
	if err := f.worker.HandleEvent(ctx, event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	record, err := f.repo.FindLatestByBudget(ctx, f.budget.ID)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if record.UsedLimit.Amount != 2500 {
		t.Errorf("used limit = %d, want 2500", record.UsedLimit.Amount)
	}

	snapshots := f.exporter.Snapshots()
	if len(snapshots) != 1 {
		t.Fatalf("exported snapshots = %d, want 1", len(snapshots))
	}
	if snapshots[0].BudgetName != "Household" || len(snapshots[0].Categories) != 1 {
		t.Errorf("snapshot = %+v", snapshots[0])
	}
	if snapshots[0].Categories[0].CategoryName != "Groceries" {
		t.Errorf("category line = %+v", snapshots[0].Categories[0])
	}
}

func TestHandleEventSkipsNonRecalculationKinds(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	event := amqp.NewEvent(amqp.EventBudgetCreated, f.budget.ID, "user-1")
	if err := f.worker.HandleEvent(ctx, event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if _, err := f.repo.FindLatestByBudget(ctx, f.budget.ID); !errors.Is(err, core.ErrStatisticsRecordNotFound) {
		t.Errorf("budget_created must not produce a snapshot, got %v", err)
	}
	if len(f.exporter.Snapshots()) != 0 {
		t.Error("budget_created must not export a snapshot")
	}
}

func TestHandleEventDropsUnknownBudget(t *testing.T) {
	f := newWorkerFixture(t)

	event := amqp.NewEvent(amqp.EventTransactionAdded, "missing", "user-1")
	if err := f.worker.HandleEvent(context.Background(), event); err != nil {
		t.Errorf("unknown budget must be dropped without error, got %v", err)
	}
}

func TestTransactionUpdateReplacesSnapshot(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	f.addTransaction(t, "txn-1", 2500, 5)

	added := amqp.NewEvent(amqp.EventTransactionAdded, f.budget.ID, "user-1")
	if err := f.worker.HandleEvent(ctx, added); err != nil {
		t.Fatalf("handle add event: %v", err)
	}
	first, err := f.repo.FindLatestByBudget(ctx, f.budget.ID)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}

	// update the amount in place and replay an update event
	_, transaction, err := f.repo.FindTransaction(ctx, "txn-1", "user-1")
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	transaction.Update(core.Money{Amount: 4000, Currency: "EUR"}, core.Expense, transaction.OccurredDate, "")
	if err := f.repo.SaveTransaction(ctx, transaction, 1); err != nil {
		t.Fatalf("save transaction: %v", err)
	}

	updated := amqp.NewEvent(amqp.EventTransactionUpdated, f.budget.ID, "user-1").
		WithTransaction("txn-1", 4000, "EUR", transaction.OccurredDate)
	if err := f.worker.HandleEvent(ctx, updated); err != nil {
		t.Fatalf("handle update event: %v", err)
	}

	latest, err := f.repo.FindLatestByBudget(ctx, f.budget.ID)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if latest.ID != first.ID {
		t.Errorf("update must replace the snapshot in place: id %s, want %s", latest.ID, first.ID)
	}
	if latest.UsedLimit.Amount != 4000 {
		t.Errorf("used limit = %d, want 4000", latest.UsedLimit.Amount)
	}
}

func TestTransactionUpdateWithoutPreviousSnapshot(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()
	f.addTransaction(t, "txn-1", 2500, 5)

	occurred := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	event := amqp.NewEvent(amqp.EventTransactionUpdated, f.budget.ID, "user-1").
		WithTransaction("txn-1", 2500, "EUR", occurred)
	if err := f.worker.HandleEvent(ctx, event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	record, err := f.repo.FindLatestByBudget(ctx, f.budget.ID)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if record.UsedLimit.Amount != 2500 {
		t.Errorf("used limit = %d, want 2500", record.UsedLimit.Amount)
	}
}
