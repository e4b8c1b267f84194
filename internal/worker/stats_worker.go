package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/export"
	"bilancio/internal/services"
)

// StatsWorker recalculates budget statistics in response to domain events.
// Every recalculation rebuilds the snapshot from the full transaction
// history, so a lost or duplicated event never corrupts the figures; the
// next event simply produces the same correct snapshot again.
type StatsWorker struct {
	budgets      services.BudgetRepository
	transactions services.TransactionRepository
	statistics   services.StatisticsRepository
	calculator   *services.StatisticsCalculator
	exporter     export.SnapshotAppender
	events       *amqp.Client
}

func NewStatsWorker(
	budgets services.BudgetRepository,
	transactions services.TransactionRepository,
	statistics services.StatisticsRepository,
	calculator *services.StatisticsCalculator,
	exporter export.SnapshotAppender,
	events *amqp.Client,
) *StatsWorker {
	return &StatsWorker{
		budgets:      budgets,
		transactions: transactions,
		statistics:   statistics,
		calculator:   calculator,
		exporter:     exporter,
		events:       events,
	}
}

// HandleEvent processes one domain event. Events that do not touch the
// figures are acknowledged without work. A returned error requeues the
// event.
func (w *StatsWorker) HandleEvent(ctx context.Context, event *amqp.Event) error {
	if !event.Kind.TriggersRecalculation() {
		slog.DebugContext(ctx, "Event does not trigger recalculation, skipping",
			"kind", string(event.Kind),
			"budget_id", event.BudgetID)
		return nil
	}

	slog.InfoContext(ctx, "Recalculating statistics",
		"kind", string(event.Kind),
		"budget_id", event.BudgetID)

	_, budget, err := w.budgets.FindBudget(ctx, event.BudgetID, event.UserID)
	if err != nil {
		if errors.Is(err, core.ErrBudgetNotFound) {
			// budget removed since the event was published; nothing to do
			slog.WarnContext(ctx, "Budget gone, dropping event",
				"budget_id", event.BudgetID,
				"kind", string(event.Kind))
			return nil
		}
		return fmt.Errorf("load budget: %w", err)
	}

	record, err := w.recalculate(ctx, event, budget)
	if err != nil {
		return err
	}

	if err := w.statistics.SaveRecord(ctx, &record); err != nil {
		return fmt.Errorf("save statistics record: %w", err)
	}

	slog.InfoContext(ctx, "Statistics snapshot saved",
		"record_id", record.ID,
		"budget_id", budget.ID,
		"balance", record.CurrentBalance.String(),
		"used_limit", record.UsedLimit.String())

	if w.events != nil {
		published := amqp.NewEvent(amqp.EventStatisticsCalculated, budget.ID, budget.UserID).
			WithStatistics(record.ID)
		if err := w.events.PublishEvent(ctx, published); err != nil {
			slog.ErrorContext(ctx, "Failed to publish statistics event",
				"record_id", record.ID,
				"error", err)
		}
	}

	w.exportSnapshot(ctx, budget, &record)
	return nil
}

// recalculate picks the calculation mode. A transaction update reuses the
// previous record id and restricts the history to the edited transaction's
// date, so the stored snapshot is replaced in place; everything else gets a
// fresh snapshot over the whole history.
func (w *StatsWorker) recalculate(ctx context.Context, event *amqp.Event, budget *core.Budget) (core.StatisticsRecord, error) {
	if event.Kind == amqp.EventTransactionUpdated && event.OccurredDate != nil {
		previous, err := w.statistics.FindLatestByBudget(ctx, budget.ID)
		if err == nil {
			transactions, err := w.transactions.FindByBudgetAndDateRange(ctx, budget.ID, *event.OccurredDate)
			if err != nil {
				return core.StatisticsRecord{}, fmt.Errorf("load transactions up to %v: %w", event.OccurredDate, err)
			}
			return w.calculator.Reproduce(previous.ID, budget, transactions), nil
		}
		if !errors.Is(err, core.ErrStatisticsRecordNotFound) {
			return core.StatisticsRecord{}, fmt.Errorf("load previous record: %w", err)
		}
		// no previous snapshot to replace; fall through to a fresh one
	}

	transactions, err := w.transactions.FindByBudget(ctx, budget.ID)
	if err != nil {
		return core.StatisticsRecord{}, fmt.Errorf("load transactions: %w", err)
	}
	return w.calculator.Calculate(budget, transactions), nil
}

// exportSnapshot is best effort: the snapshot is already stored, a failed
// export only costs the spreadsheet row.
func (w *StatsWorker) exportSnapshot(ctx context.Context, budget *core.Budget, record *core.StatisticsRecord) {
	if w.exporter == nil {
		return
	}
	ref, err := w.exporter.Append(ctx, export.FromRecord(budget, record))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export statistics snapshot",
			"record_id", record.ID,
			"error", err)
		return
	}
	slog.InfoContext(ctx, "Statistics snapshot exported",
		"record_id", record.ID,
		"ref", ref)
}
