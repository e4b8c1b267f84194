package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RenewalProcessor rolls elapsed budgets over into their next period. The
// renewal worker calls it on a schedule; each elapsed active budget gets a
// follow-up budget and is then deactivated so the next scan skips it.
type RenewalProcessor struct {
	budgets BudgetRepository
	service *BudgetService
}

func NewRenewalProcessor(budgets BudgetRepository, service *BudgetService) *RenewalProcessor {
	return &RenewalProcessor{budgets: budgets, service: service}
}

// ProcessElapsedBudgets renews every active budget whose period ended at or
// before now. Failures on one budget never block the rest of the batch.
func (p *RenewalProcessor) ProcessElapsedBudgets(ctx context.Context, now time.Time) (int, error) {
	if p.budgets == nil || p.service == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	elapsed, err := p.budgets.ListElapsedActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list elapsed budgets: %w", err)
	}

	slog.InfoContext(ctx, "Processing elapsed budgets",
		"total_elapsed", len(elapsed),
		"processing_date", now.Format("2006-01-02"))

	renewedCount := 0
	for _, budget := range elapsed {
		renewed, err := p.service.Renew(ctx, budget.ID, budget.UserID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to renew budget",
				"budget_id", budget.ID,
				"error", err)
			continue
		}

		// retire the old budget so it drops out of the next scan
		if _, err := p.service.Deactivate(ctx, budget.ID, budget.UserID); err != nil {
			slog.ErrorContext(ctx, "Failed to deactivate renewed budget",
				"budget_id", budget.ID,
				"error", err)
			// Continue anyway - the follow-up budget exists
		}

		renewedCount++
		slog.InfoContext(ctx, "Renewed budget into next period",
			"budget_id", budget.ID,
			"renewed_id", renewed.ID,
			"start_date", renewed.StartDate.Format(time.RFC3339),
			"end_date", renewed.EndDate.Format(time.RFC3339))
	}

	slog.InfoContext(ctx, "Budget renewal processing complete",
		"renewed", renewedCount,
		"total_checked", len(elapsed))

	return renewedCount, nil
}