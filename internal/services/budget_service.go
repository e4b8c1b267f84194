package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"

	"github.com/google/uuid"
)

// BudgetService orchestrates budget and transaction commands: it loads
// aggregates through the repository ports, applies domain operations, saves
// under the optimistic version, and publishes domain events. A failed
// command leaves storage untouched; a failed event publish never fails the
// command, since the worker catches up from storage anyway.
type BudgetService struct {
	budgets      BudgetRepository
	transactions TransactionRepository
	statistics   StatisticsRepository
	events       *amqp.Client
	clock        core.Clock
	transfers    *TransferExecutor
}

func NewBudgetService(
	budgets BudgetRepository,
	transactions TransactionRepository,
	statistics StatisticsRepository,
	events *amqp.Client,
	clock core.Clock,
) *BudgetService {
	return &BudgetService{
		budgets:      budgets,
		transactions: transactions,
		statistics:   statistics,
		events:       events,
		clock:        clock,
		transfers:    NewTransferExecutor(transactions),
	}
}

// CreateBudget builds a budget through the factory and persists it at
// version 0.
func (s *BudgetService) CreateBudget(ctx context.Context, userID, name string, totalLimit core.Limit, input core.BudgetStrategyInput, startDate time.Time) (*core.Budget, error) {
	budget, err := NewBudget(userID, name, totalLimit, input, startDate)
	if err != nil {
		return nil, err
	}
	if err := s.budgets.SaveBudget(ctx, budget, 0); err != nil {
		return nil, fmt.Errorf("save budget: %w", err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventBudgetCreated, budget.ID, userID))
	return budget, nil
}

// GetBudget loads a budget with its categories.
func (s *BudgetService) GetBudget(ctx context.Context, budgetID, userID string) (*core.Budget, error) {
	_, budget, err := s.budgets.FindBudget(ctx, budgetID, userID)
	return budget, err
}

// AddCategory appends a category under the aggregate invariants.
func (s *BudgetService) AddCategory(ctx context.Context, budgetID, userID, rawName string, limit core.Limit) (core.Category, error) {
	name, err := core.NewCategoryName(rawName)
	if err != nil {
		return core.Category{}, err
	}

	version, budget, err := s.budgets.FindBudget(ctx, budgetID, userID)
	if err != nil {
		return core.Category{}, err
	}
	category, err := budget.AddCategory(name, limit)
	if err != nil {
		return core.Category{}, err
	}
	if err := s.budgets.SaveBudget(ctx, budget, version); err != nil {
		return core.Category{}, fmt.Errorf("save budget: %w", err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventCategoryAdded, budgetID, userID).WithCategory(category.ID))
	return category, nil
}

// EditCategory renames or re-limits a category under the same invariants.
func (s *BudgetService) EditCategory(ctx context.Context, budgetID, userID, categoryID, rawName string, limit core.Limit) (core.Category, error) {
	name, err := core.NewCategoryName(rawName)
	if err != nil {
		return core.Category{}, err
	}

	version, budget, err := s.budgets.FindBudget(ctx, budgetID, userID)
	if err != nil {
		return core.Category{}, err
	}
	category, err := budget.EditCategory(categoryID, name, limit)
	if err != nil {
		return core.Category{}, err
	}
	if err := s.budgets.SaveBudget(ctx, budget, version); err != nil {
		return core.Category{}, fmt.Errorf("save budget: %w", err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventCategoryEdited, budgetID, userID).WithCategory(categoryID))
	return category, nil
}

// RemoveCategory drops the category from the budget and then applies the
// transfer policy to its transactions. The budget save runs first so a
// version conflict aborts the command before anything destructive touches
// the transactions. Removing an id the budget does not own is a no-op on
// the aggregate.
func (s *BudgetService) RemoveCategory(ctx context.Context, budgetID, userID, categoryID string, policy TransferPolicyInput) error {
	version, budget, err := s.budgets.FindBudget(ctx, budgetID, userID)
	if err != nil {
		return err
	}

	// the move target must be a surviving category of the same budget
	if policy.Kind == MoveToOtherCategoryPolicy {
		if policy.TargetCategoryID == categoryID {
			return fmt.Errorf("%w: target equals the removed category", core.ErrInvalidTransferPolicy)
		}
		if _, err := budget.CategoryByID(policy.TargetCategoryID); err != nil {
			return err
		}
	}
	if err := s.transfers.Validate(policy); err != nil {
		return err
	}

	budget.RemoveCategory(categoryID)
	if err := s.budgets.SaveBudget(ctx, budget, version); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}

	if err := s.transfers.Apply(ctx, policy, categoryID); err != nil {
		return fmt.Errorf("transfer transactions of category %s: %w", categoryID, err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventCategoryRemoved, budgetID, userID).WithCategory(categoryID))
	return nil
}

// Deactivate stamps the deactivation instant and returns it. Repeated calls
// return the original instant.
func (s *BudgetService) Deactivate(ctx context.Context, budgetID, userID string) (time.Time, error) {
	version, budget, err := s.budgets.FindBudget(ctx, budgetID, userID)
	if err != nil {
		return time.Time{}, err
	}

	wasActive := budget.IsActive()
	at := DeactivateBudget(budget, s.clock)
	if !wasActive {
		return at, nil
	}

	if err := s.budgets.SaveBudget(ctx, budget, version); err != nil {
		return time.Time{}, fmt.Errorf("save budget: %w", err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventBudgetDeactivated, budgetID, userID))
	return at, nil
}

// Renew creates the follow-up budget for the next period and persists it at
// version 0. The old budget is left untouched.
func (s *BudgetService) Renew(ctx context.Context, budgetID, userID string) (*core.Budget, error) {
	_, budget, err := s.budgets.FindBudget(ctx, budgetID, userID)
	if err != nil {
		return nil, err
	}
	renewed, err := RenewBudget(budget)
	if err != nil {
		return nil, err
	}
	if err := s.budgets.SaveBudget(ctx, renewed, 0); err != nil {
		return nil, fmt.Errorf("save renewed budget: %w", err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventBudgetRenewed, renewed.ID, userID))
	return renewed, nil
}

// AddTransaction records an income or expense against a budget category
// after validating the date against the budget period. Amounts are stored
// positive; the type carries the sign.
func (s *BudgetService) AddTransaction(ctx context.Context, budgetID, userID, categoryID string, amount core.Money, transactionType core.TransactionType, occurred time.Time, description string) (*core.Transaction, error) {
	if !transactionType.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidTransactionType, transactionType)
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, fmt.Errorf("%w: transaction amount must be positive, got %s", core.ErrInvalidAmount, amount)
	}

	_, budget, err := s.budgets.FindBudget(ctx, budgetID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := budget.CategoryByID(categoryID); err != nil {
		return nil, err
	}
	if err := budget.ValidateTransactionDate(occurred); err != nil {
		return nil, err
	}

	transaction := &core.Transaction{
		ID:           uuid.NewString(),
		CategoryID:   categoryID,
		UserID:       userID,
		Amount:       amount,
		Type:         transactionType,
		OccurredDate: occurred,
		Description:  description,
	}
	if err := s.transactions.SaveTransaction(ctx, transaction, 0); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventTransactionAdded, budgetID, userID).
		WithCategory(categoryID).
		WithTransaction(transaction.ID, amount.Amount, amount.Currency, occurred))
	return transaction, nil
}

// UpdateTransaction rewrites a transaction in place, re-validating the new
// date against the owning budget of the (possibly new) category. It returns
// the updated transaction together with the owning budget's id.
func (s *BudgetService) UpdateTransaction(ctx context.Context, transactionID, userID, categoryID string, amount core.Money, transactionType core.TransactionType, occurred time.Time, description string) (*core.Transaction, string, error) {
	if !transactionType.Valid() {
		return nil, "", fmt.Errorf("%w: %q", core.ErrInvalidTransactionType, transactionType)
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, "", fmt.Errorf("%w: transaction amount must be positive, got %s", core.ErrInvalidAmount, amount)
	}

	version, transaction, err := s.transactions.FindTransaction(ctx, transactionID, userID)
	if err != nil {
		return nil, "", err
	}

	_, budget, err := s.budgets.FindBudgetByCategory(ctx, categoryID, userID)
	if err != nil {
		return nil, "", err
	}
	if err := budget.ValidateTransactionDate(occurred); err != nil {
		return nil, "", err
	}

	transaction.Update(amount, transactionType, occurred, description)
	transaction.UpdateCategory(categoryID)
	if err := s.transactions.SaveTransaction(ctx, transaction, version); err != nil {
		return nil, "", fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventTransactionUpdated, budget.ID, userID).
		WithCategory(categoryID).
		WithTransaction(transaction.ID, amount.Amount, amount.Currency, occurred))
	return transaction, budget.ID, nil
}

// RemoveTransaction deletes a transaction and returns the owning budget's id.
func (s *BudgetService) RemoveTransaction(ctx context.Context, transactionID, userID string) (string, error) {
	_, transaction, err := s.transactions.FindTransaction(ctx, transactionID, userID)
	if err != nil {
		return "", err
	}
	_, budget, err := s.budgets.FindBudgetByCategory(ctx, transaction.CategoryID, userID)
	if err != nil {
		return "", err
	}

	if err := s.transactions.DeleteTransaction(ctx, transactionID); err != nil {
		return "", fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.NewEvent(amqp.EventTransactionRemoved, budget.ID, userID).
		WithCategory(transaction.CategoryID).
		WithTransaction(transaction.ID, transaction.Amount.Amount, transaction.Amount.Currency, transaction.OccurredDate))
	return budget.ID, nil
}

// Statistics returns the latest snapshot for a budget the user owns.
func (s *BudgetService) Statistics(ctx context.Context, budgetID, userID string) (*core.StatisticsRecord, error) {
	if _, _, err := s.budgets.FindBudget(ctx, budgetID, userID); err != nil {
		return nil, err
	}
	return s.statistics.FindLatestByBudget(ctx, budgetID)
}

func (s *BudgetService) publish(ctx context.Context, event *amqp.Event) {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping event", "kind", string(event.Kind))
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish domain event",
			"kind", string(event.Kind),
			"budget_id", event.BudgetID,
			"error", err)
	}
}
