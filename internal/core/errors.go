package core

// Error is a domain error carrying a stable machine code alongside the
// human-readable message. Handlers map codes to responses; callers match
// with errors.Is against the sentinel values below.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	// Validation errors (construction time)
	ErrInvalidCurrency          = &Error{Code: "invalid_currency", Message: "currency must be a 3-letter code"}
	ErrInvalidAmount            = &Error{Code: "invalid_amount", Message: "invalid monetary amount"}
	ErrInvalidTransactionType   = &Error{Code: "invalid_transaction_type", Message: "transaction type must be INCOME or EXPENSE"}
	ErrInvalidLimitValue        = &Error{Code: "invalid_limit_value", Message: "limit value must not be negative"}
	ErrEmptyCategoryName        = &Error{Code: "empty_category_name", Message: "category name cannot be empty"}
	ErrCategoryNameTooShort     = &Error{Code: "category_name_too_short", Message: "category name must be at least 3 characters"}
	ErrCategoryNameTooLong      = &Error{Code: "category_name_too_long", Message: "category name must be at most 255 characters"}
	ErrEmptyBudgetName          = &Error{Code: "empty_budget_name", Message: "budget name cannot be empty"}
	ErrInvalidStrategyParameter = &Error{Code: "invalid_strategy_parameter", Message: "invalid budget strategy parameter"}
	ErrInvalidTransferPolicy    = &Error{Code: "invalid_transfer_policy", Message: "transfer policy requires a target category"}

	// Invariant violations (aggregate method time)
	ErrMaxCategoriesReached                    = &Error{Code: "max_categories_reached", Message: "budget already has the maximum number of categories"}
	ErrDuplicateCategoryName                   = &Error{Code: "duplicate_category_name", Message: "a category with this name already exists in the budget"}
	ErrCategoryLimitExceedsBudget              = &Error{Code: "category_limit_exceeds_budget", Message: "sum of category limits exceeds the budget total limit"}
	ErrTransactionOutsideBudgetPeriod          = &Error{Code: "transaction_outside_budget_period", Message: "transaction date falls outside the budget period"}
	ErrCannotAddTransactionToDeactivatedBudget = &Error{Code: "cannot_add_transaction_to_deactivated_budget", Message: "transaction date is after the budget deactivation date"}
	ErrCannotRenewDeactivatedBudget            = &Error{Code: "cannot_renew_deactivated_budget", Message: "a deactivated budget cannot be renewed"}

	// Lookup errors
	ErrCategoryNotFound         = &Error{Code: "category_not_found", Message: "category not found"}
	ErrBudgetNotFound           = &Error{Code: "budget_not_found", Message: "budget not found"}
	ErrTransactionNotFound      = &Error{Code: "transaction_not_found", Message: "transaction not found"}
	ErrStatisticsRecordNotFound = &Error{Code: "statistics_record_not_found", Message: "statistics record not found"}

	// Concurrency errors
	ErrNotCompatibleVersion = &Error{Code: "not_compatible_version", Message: "aggregate version does not match the stored version"}

	// Currency errors
	ErrCurrencyMismatch = &Error{Code: "currency_mismatch", Message: "operand currencies do not match"}
	ErrDivisionByZero   = &Error{Code: "division_by_zero", Message: "cannot divide a monetary amount by zero"}
)
