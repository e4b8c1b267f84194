package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
)

// TransferPolicyKind discriminates what happens to a removed category's
// transactions.
type TransferPolicyKind string

const (
	DeleteTransactionsPolicy  TransferPolicyKind = "delete_transactions"
	MoveToOtherCategoryPolicy TransferPolicyKind = "move_to_other_category"
)

// TransferPolicyInput is the validated policy selection.
type TransferPolicyInput struct {
	Kind             TransferPolicyKind
	TargetCategoryID string
}

// NewDeleteTransactionsPolicyInput selects bulk deletion.
func NewDeleteTransactionsPolicyInput() TransferPolicyInput {
	return TransferPolicyInput{Kind: DeleteTransactionsPolicy}
}

// NewMoveToOtherCategoryPolicyInput selects reassignment to the target
// category. An empty target fails at construction.
func NewMoveToOtherCategoryPolicyInput(targetCategoryID string) (TransferPolicyInput, error) {
	if targetCategoryID == "" {
		return TransferPolicyInput{}, core.ErrInvalidTransferPolicy
	}
	return TransferPolicyInput{Kind: MoveToOtherCategoryPolicy, TargetCategoryID: targetCategoryID}, nil
}

// TransferStrategy applies a removal policy to a category's transactions.
type TransferStrategy interface {
	Applicable(input TransferPolicyInput) bool
	Transfer(ctx context.Context, input TransferPolicyInput, categoryID string) error
}

// DeleteTransactionsStrategy bulk-deletes every transaction of the removed
// category.
type DeleteTransactionsStrategy struct {
	transactions TransactionRepository
}

func (DeleteTransactionsStrategy) Applicable(input TransferPolicyInput) bool {
	return input.Kind == DeleteTransactionsPolicy
}

func (s DeleteTransactionsStrategy) Transfer(ctx context.Context, _ TransferPolicyInput, categoryID string) error {
	if err := s.transactions.DeleteByCategory(ctx, categoryID); err != nil {
		return fmt.Errorf("delete transactions of category %s: %w", categoryID, err)
	}
	slog.InfoContext(ctx, "Deleted transactions of removed category", "category_id", categoryID)
	return nil
}

// MoveTransactionsStrategy reassigns every transaction of the removed
// category to the target category and bulk-saves them.
type MoveTransactionsStrategy struct {
	transactions TransactionRepository
}

func (MoveTransactionsStrategy) Applicable(input TransferPolicyInput) bool {
	return input.Kind == MoveToOtherCategoryPolicy
}

func (s MoveTransactionsStrategy) Transfer(ctx context.Context, input TransferPolicyInput, categoryID string) error {
	if input.TargetCategoryID == "" {
		return core.ErrInvalidTransferPolicy
	}

	moved, err := s.transactions.FindByCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("load transactions of category %s: %w", categoryID, err)
	}
	for i := range moved {
		moved[i].UpdateCategory(input.TargetCategoryID)
	}
	if err := s.transactions.SaveAll(ctx, moved); err != nil {
		return fmt.Errorf("save moved transactions: %w", err)
	}

	slog.InfoContext(ctx, "Moved transactions of removed category",
		"category_id", categoryID,
		"target_category_id", input.TargetCategoryID,
		"count", len(moved))
	return nil
}

// TransferExecutor dispatches removal policies through a closed registry,
// mirroring the period strategy table.
type TransferExecutor struct {
	strategies map[TransferPolicyKind]TransferStrategy
}

func NewTransferExecutor(transactions TransactionRepository) *TransferExecutor {
	return &TransferExecutor{
		strategies: map[TransferPolicyKind]TransferStrategy{
			DeleteTransactionsPolicy:  DeleteTransactionsStrategy{transactions: transactions},
			MoveToOtherCategoryPolicy: MoveTransactionsStrategy{transactions: transactions},
		},
	}
}

// Validate checks that a strategy exists for the policy kind without
// running it. Callers validate before persisting anything so a bad policy
// never leaves a half-applied removal behind.
func (e *TransferExecutor) Validate(input TransferPolicyInput) error {
	if _, ok := e.strategies[input.Kind]; !ok {
		return fmt.Errorf("%w: unknown policy kind %q", core.ErrInvalidTransferPolicy, input.Kind)
	}
	return nil
}

// Apply runs the strategy matching the policy kind.
func (e *TransferExecutor) Apply(ctx context.Context, input TransferPolicyInput, categoryID string) error {
	strategy, ok := e.strategies[input.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown policy kind %q", core.ErrInvalidTransferPolicy, input.Kind)
	}
	return strategy.Transfer(ctx, input, categoryID)
}
