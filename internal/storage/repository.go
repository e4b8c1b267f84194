package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements the budget, transaction and statistics
// repository ports on a single SQLite database. Aggregates carry a version
// column; writes compare-and-swap on it so concurrent editors fail loudly
// with ErrNotCompatibleVersion instead of silently overwriting each other.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const timeLayout = time.RFC3339Nano

// isUniqueViolation detects a primary key or unique constraint failure from
// the sqlite driver. Inserting an id that already exists means another
// writer persisted the aggregate first.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

// FindBudget implements services.BudgetRepository.
func (r *SQLiteRepository) FindBudget(ctx context.Context, budgetID, userID string) (int64, *core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, total_limit_subunits, currency, start_date, end_date,
		       deactivation_date, strategy_kind, strategy_start_day, strategy_start_month, version
		FROM budgets WHERE id = ? AND user_id = ?`, budgetID, userID)

	version, budget, err := r.scanBudget(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("%w: %s", core.ErrBudgetNotFound, budgetID)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("find budget: %w", err)
	}
	return version, budget, nil
}

// FindBudgetByCategory implements services.BudgetRepository.
func (r *SQLiteRepository) FindBudgetByCategory(ctx context.Context, categoryID, userID string) (int64, *core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT b.id, b.user_id, b.name, b.total_limit_subunits, b.currency, b.start_date, b.end_date,
		       b.deactivation_date, b.strategy_kind, b.strategy_start_day, b.strategy_start_month, b.version
		FROM budgets b JOIN categories c ON c.budget_id = b.id
		WHERE c.id = ? AND b.user_id = ?`, categoryID, userID)

	version, budget, err := r.scanBudget(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("%w: no budget owns category %s", core.ErrBudgetNotFound, categoryID)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("find budget by category: %w", err)
	}
	return version, budget, nil
}

func (r *SQLiteRepository) scanBudget(ctx context.Context, row *sql.Row) (int64, *core.Budget, error) {
	var (
		b                core.Budget
		limitSubunits    int64
		currency         string
		startRaw, endRaw string
		deactivatedRaw   sql.NullString
		strategyKind     string
		startDay         int
		startMonth       int
		version          int64
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Name, &limitSubunits, &currency, &startRaw, &endRaw,
		&deactivatedRaw, &strategyKind, &startDay, &startMonth, &version)
	if err != nil {
		return 0, nil, err
	}

	limit, err := core.NewLimit(core.Money{Amount: limitSubunits, Currency: currency})
	if err != nil {
		return 0, nil, fmt.Errorf("restore total limit: %w", err)
	}
	b.TotalLimit = limit

	if b.StartDate, err = decodeTime(startRaw); err != nil {
		return 0, nil, err
	}
	if b.EndDate, err = decodeTime(endRaw); err != nil {
		return 0, nil, err
	}
	if deactivatedRaw.Valid {
		deactivated, err := decodeTime(deactivatedRaw.String)
		if err != nil {
			return 0, nil, err
		}
		b.DeactivationDate = &deactivated
	}

	b.StrategyInput = core.BudgetStrategyInput{
		Kind:       core.StrategyKind(strategyKind),
		StartDay:   startDay,
		StartMonth: startMonth,
	}

	if err := r.loadCategories(ctx, &b, currency); err != nil {
		return 0, nil, err
	}
	return version, &b, nil
}

func (r *SQLiteRepository) loadCategories(ctx context.Context, budget *core.Budget, currency string) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, limit_subunits FROM categories
		WHERE budget_id = ? ORDER BY position`, budget.ID)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c             core.Category
			name          string
			limitSubunits int64
		)
		if err := rows.Scan(&c.ID, &name, &limitSubunits); err != nil {
			return fmt.Errorf("scan category: %w", err)
		}
		categoryName, err := core.NewCategoryName(name)
		if err != nil {
			return fmt.Errorf("restore category name: %w", err)
		}
		limit, err := core.NewLimit(core.Money{Amount: limitSubunits, Currency: currency})
		if err != nil {
			return fmt.Errorf("restore category limit: %w", err)
		}
		c.BudgetID = budget.ID
		c.Name = categoryName
		c.Limit = limit
		budget.Categories = append(budget.Categories, c)
	}
	return rows.Err()
}

// SaveBudget implements services.BudgetRepository. The whole aggregate is
// written in one transaction; category rows are replaced wholesale.
func (r *SQLiteRepository) SaveBudget(ctx context.Context, budget *core.Budget, expectedVersion int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save budget: %w", err)
	}
	defer tx.Rollback()

	var deactivated sql.NullString
	if budget.DeactivationDate != nil {
		deactivated = sql.NullString{String: encodeTime(*budget.DeactivationDate), Valid: true}
	}

	if expectedVersion == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO budgets (id, user_id, name, total_limit_subunits, currency, start_date, end_date,
			                     deactivation_date, strategy_kind, strategy_start_day, strategy_start_month, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			budget.ID, budget.UserID, budget.Name, budget.TotalLimit.Value.Amount, budget.Currency(),
			encodeTime(budget.StartDate), encodeTime(budget.EndDate), deactivated,
			string(budget.StrategyInput.Kind), budget.StrategyInput.StartDay, budget.StrategyInput.StartMonth)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: budget %s already exists", core.ErrNotCompatibleVersion, budget.ID)
			}
			return fmt.Errorf("insert budget %s: %w", budget.ID, err)
		}
	} else {
		result, err := tx.ExecContext(ctx, `
			UPDATE budgets SET user_id = ?, name = ?, total_limit_subunits = ?, currency = ?,
			                   start_date = ?, end_date = ?, deactivation_date = ?,
			                   strategy_kind = ?, strategy_start_day = ?, strategy_start_month = ?,
			                   version = version + 1
			WHERE id = ? AND version = ?`,
			budget.UserID, budget.Name, budget.TotalLimit.Value.Amount, budget.Currency(),
			encodeTime(budget.StartDate), encodeTime(budget.EndDate), deactivated,
			string(budget.StrategyInput.Kind), budget.StrategyInput.StartDay, budget.StrategyInput.StartMonth,
			budget.ID, expectedVersion)
		if err != nil {
			return fmt.Errorf("update budget: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update budget rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: budget %s expected version %d", core.ErrNotCompatibleVersion, budget.ID, expectedVersion)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE budget_id = ?`, budget.ID); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for i, c := range budget.Categories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, budget_id, name, limit_subunits, position)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, budget.ID, string(c.Name), c.Limit.Value.Amount, i)
		if err != nil {
			return fmt.Errorf("insert category %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"budget_id", budget.ID,
		"version", expectedVersion+1,
		"categories", len(budget.Categories))
	return nil
}

// ListElapsedActive implements services.BudgetRepository.
func (r *SQLiteRepository) ListElapsedActive(ctx context.Context, now time.Time) ([]*core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id FROM budgets
		WHERE deactivation_date IS NULL AND end_date <= ?
		ORDER BY end_date`, encodeTime(now))
	if err != nil {
		return nil, fmt.Errorf("list elapsed budgets: %w", err)
	}
	defer rows.Close()

	type ref struct{ id, userID string }
	var refs []ref
	for rows.Next() {
		var x ref
		if err := rows.Scan(&x.id, &x.userID); err != nil {
			return nil, fmt.Errorf("scan elapsed budget: %w", err)
		}
		refs = append(refs, x)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var budgets []*core.Budget
	for _, x := range refs {
		_, budget, err := r.FindBudget(ctx, x.id, x.userID)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}
	return budgets, nil
}

// FindTransaction implements services.TransactionRepository.
func (r *SQLiteRepository) FindTransaction(ctx context.Context, transactionID, userID string) (int64, *core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, category_id, user_id, amount_subunits, currency, type, occurred_date, description, version
		FROM transactions WHERE id = ? AND user_id = ?`, transactionID, userID)

	var (
		t           core.Transaction
		occurredRaw string
		version     int64
	)
	err := row.Scan(&t.ID, &t.CategoryID, &t.UserID, &t.Amount.Amount, &t.Amount.Currency,
		&t.Type, &occurredRaw, &t.Description, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("%w: %s", core.ErrTransactionNotFound, transactionID)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("find transaction: %w", err)
	}
	if t.OccurredDate, err = decodeTime(occurredRaw); err != nil {
		return 0, nil, err
	}
	return version, &t, nil
}

// SaveTransaction implements services.TransactionRepository.
func (r *SQLiteRepository) SaveTransaction(ctx context.Context, transaction *core.Transaction, expectedVersion int64) error {
	if expectedVersion == 0 {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO transactions (id, category_id, user_id, amount_subunits, currency, type, occurred_date, description, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			transaction.ID, transaction.CategoryID, transaction.UserID,
			transaction.Amount.Amount, transaction.Amount.Currency,
			string(transaction.Type), encodeTime(transaction.OccurredDate), transaction.Description)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: transaction %s already exists", core.ErrNotCompatibleVersion, transaction.ID)
			}
			return fmt.Errorf("insert transaction %s: %w", transaction.ID, err)
		}
		return nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET category_id = ?, amount_subunits = ?, currency = ?, type = ?,
		                        occurred_date = ?, description = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		transaction.CategoryID, transaction.Amount.Amount, transaction.Amount.Currency,
		string(transaction.Type), encodeTime(transaction.OccurredDate), transaction.Description,
		transaction.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s expected version %d", core.ErrNotCompatibleVersion, transaction.ID, expectedVersion)
	}
	return nil
}

// DeleteTransaction implements services.TransactionRepository.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, transactionID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrTransactionNotFound, transactionID)
	}
	return nil
}

// FindByBudget implements services.TransactionRepository.
func (r *SQLiteRepository) FindByBudget(ctx context.Context, budgetID string) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, `
		SELECT t.id, t.category_id, t.user_id, t.amount_subunits, t.currency, t.type, t.occurred_date, t.description
		FROM transactions t JOIN categories c ON c.id = t.category_id
		WHERE c.budget_id = ? ORDER BY t.occurred_date`, budgetID)
}

// FindByBudgetAndDateRange implements services.TransactionRepository.
func (r *SQLiteRepository) FindByBudgetAndDateRange(ctx context.Context, budgetID string, end time.Time) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, `
		SELECT t.id, t.category_id, t.user_id, t.amount_subunits, t.currency, t.type, t.occurred_date, t.description
		FROM transactions t JOIN categories c ON c.id = t.category_id
		WHERE c.budget_id = ? AND t.occurred_date <= ? ORDER BY t.occurred_date`, budgetID, encodeTime(end))
}

// FindByCategory implements services.TransactionRepository.
func (r *SQLiteRepository) FindByCategory(ctx context.Context, categoryID string) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, `
		SELECT id, category_id, user_id, amount_subunits, currency, type, occurred_date, description
		FROM transactions WHERE category_id = ? ORDER BY occurred_date`, categoryID)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		var (
			t           core.Transaction
			occurredRaw string
		)
		err := rows.Scan(&t.ID, &t.CategoryID, &t.UserID, &t.Amount.Amount, &t.Amount.Currency,
			&t.Type, &occurredRaw, &t.Description)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.OccurredDate, err = decodeTime(occurredRaw); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// SaveAll implements services.TransactionRepository. Used by the move
// transfer strategy; each row bumps its own version.
func (r *SQLiteRepository) SaveAll(ctx context.Context, transactions []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save all: %w", err)
	}
	defer tx.Rollback()

	for _, t := range transactions {
		result, err := tx.ExecContext(ctx, `
			UPDATE transactions SET category_id = ?, amount_subunits = ?, currency = ?, type = ?,
			                        occurred_date = ?, description = ?, version = version + 1
			WHERE id = ?`,
			t.CategoryID, t.Amount.Amount, t.Amount.Currency, string(t.Type),
			encodeTime(t.OccurredDate), t.Description, t.ID)
		if err != nil {
			return fmt.Errorf("update transaction %s: %w", t.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update transaction rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", core.ErrTransactionNotFound, t.ID)
		}
	}
	return tx.Commit()
}

// DeleteByCategory implements services.TransactionRepository.
func (r *SQLiteRepository) DeleteByCategory(ctx context.Context, categoryID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE category_id = ?`, categoryID)
	if err != nil {
		return fmt.Errorf("delete transactions by category: %w", err)
	}
	affected, _ := result.RowsAffected()
	slog.InfoContext(ctx, "Transactions deleted by category",
		"category_id", categoryID,
		"count", affected)
	return nil
}

// FindLatestByBudget implements services.StatisticsRepository.
func (r *SQLiteRepository) FindLatestByBudget(ctx context.Context, budgetID string) (*core.StatisticsRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, budget_id, current_balance_subunits, daily_available_subunits,
		       daily_average_subunits, used_limit_subunits, currency, creation_date
		FROM statistics_records WHERE budget_id = ?
		ORDER BY creation_date DESC, rowid DESC LIMIT 1`, budgetID)

	var (
		record      core.StatisticsRecord
		balance     int64
		available   int64
		average     int64
		used        int64
		currency    string
		creationRaw string
	)
	err := row.Scan(&record.ID, &record.UserID, &record.BudgetID, &balance, &available,
		&average, &used, &currency, &creationRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: budget %s", core.ErrStatisticsRecordNotFound, budgetID)
	}
	if err != nil {
		return nil, fmt.Errorf("find latest statistics: %w", err)
	}

	record.CurrentBalance = core.Money{Amount: balance, Currency: currency}
	record.DailyAvailableAmount = core.Money{Amount: available, Currency: currency}
	record.DailyAverage = core.Money{Amount: average, Currency: currency}
	record.UsedLimit = core.Money{Amount: used, Currency: currency}
	if record.CreationDate, err = decodeTime(creationRaw); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_id, current_balance_subunits, daily_available_subunits,
		       daily_average_subunits, used_limit_subunits
		FROM statistics_categories WHERE record_id = ? ORDER BY position`, record.ID)
	if err != nil {
		return nil, fmt.Errorf("load category statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c                                 core.CategoryStatisticsRecord
			cBalance, cAvailable, cAvg, cUsed int64
		)
		if err := rows.Scan(&c.ID, &c.CategoryID, &cBalance, &cAvailable, &cAvg, &cUsed); err != nil {
			return nil, fmt.Errorf("scan category statistics: %w", err)
		}
		c.CurrentBalance = core.Money{Amount: cBalance, Currency: currency}
		c.DailyAvailableAmount = core.Money{Amount: cAvailable, Currency: currency}
		c.DailyAverage = core.Money{Amount: cAvg, Currency: currency}
		c.UsedLimit = core.Money{Amount: cUsed, Currency: currency}
		record.Categories = append(record.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveRecord implements services.StatisticsRepository. Saving a record with
// an id that already exists replaces it; category rows follow the record.
func (r *SQLiteRepository) SaveRecord(ctx context.Context, record *core.StatisticsRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save statistics: %w", err)
	}
	defer tx.Rollback()

	currency := record.CurrentBalance.Currency
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO statistics_records
			(id, user_id, budget_id, current_balance_subunits, daily_available_subunits,
			 daily_average_subunits, used_limit_subunits, currency, creation_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.BudgetID,
		record.CurrentBalance.Amount, record.DailyAvailableAmount.Amount,
		record.DailyAverage.Amount, record.UsedLimit.Amount,
		currency, encodeTime(record.CreationDate))
	if err != nil {
		return fmt.Errorf("save statistics record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM statistics_categories WHERE record_id = ?`, record.ID); err != nil {
		return fmt.Errorf("clear category statistics: %w", err)
	}
	for i, c := range record.Categories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO statistics_categories
				(id, record_id, category_id, current_balance_subunits, daily_available_subunits,
				 daily_average_subunits, used_limit_subunits, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, record.ID, c.CategoryID,
			c.CurrentBalance.Amount, c.DailyAvailableAmount.Amount,
			c.DailyAverage.Amount, c.UsedLimit.Amount, i)
		if err != nil {
			return fmt.Errorf("save category statistics %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save statistics: %w", err)
	}

	slog.InfoContext(ctx, "Statistics record saved",
		"record_id", record.ID,
		"budget_id", record.BudgetID,
		"categories", len(record.Categories))
	return nil
}
