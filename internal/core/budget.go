package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxCategoriesPerBudget caps how many categories one budget may own.
const MaxCategoriesPerBudget = 5

// Budget is the aggregate root of the domain. It owns its categories and is
// the only place where category count, name uniqueness, and limit-sum
// invariants are enforced. The end date is the last instant of the period
// (one second before the next period starts), so date comparisons against
// [StartDate, EndDate] behave inclusively.
type Budget struct {
	ID               string
	UserID           string
	Name             string
	TotalLimit       Limit
	StartDate        time.Time
	EndDate          time.Time
	DeactivationDate *time.Time
	Categories       []Category
	StrategyInput    BudgetStrategyInput
}

// Currency is derived from the total limit; every amount inside the budget
// shares it.
func (b *Budget) Currency() string { return b.TotalLimit.Value.Currency }

// IsActive reports whether the budget has not been deactivated.
func (b *Budget) IsActive() bool { return b.DeactivationDate == nil }

// AddCategory appends a category after checking the count, duplicate-name,
// and limit-sum invariants. The new category gets a random id.
func (b *Budget) AddCategory(name CategoryName, limit Limit) (Category, error) {
	if len(b.Categories) >= MaxCategoriesPerBudget {
		return Category{}, fmt.Errorf("%w: budget %s", ErrMaxCategoriesReached, b.ID)
	}
	if err := b.checkCategoryInvariants(name, limit, ""); err != nil {
		return Category{}, err
	}

	category := Category{
		ID:       uuid.NewString(),
		BudgetID: b.ID,
		Name:     name,
		Limit:    limit,
	}
	b.Categories = append(b.Categories, category)
	return category, nil
}

// EditCategory renames or re-limits an existing category under the same
// invariants as AddCategory, excluding the edited category from the sums.
func (b *Budget) EditCategory(categoryID string, name CategoryName, limit Limit) (Category, error) {
	category, err := b.CategoryByID(categoryID)
	if err != nil {
		return Category{}, err
	}
	if err := b.checkCategoryInvariants(name, limit, categoryID); err != nil {
		return Category{}, err
	}
	category.Name = name
	category.Limit = limit
	return *category, nil
}

// RemoveCategory filters the category out of the budget. A missing id is a
// silent no-op; lookups that need failure semantics go through CategoryByID.
func (b *Budget) RemoveCategory(categoryID string) {
	kept := b.Categories[:0]
	for _, c := range b.Categories {
		if c.ID != categoryID {
			kept = append(kept, c)
		}
	}
	b.Categories = kept
}

// CategoryByID returns the category or ErrCategoryNotFound.
func (b *Budget) CategoryByID(categoryID string) (*Category, error) {
	for i := range b.Categories {
		if b.Categories[i].ID == categoryID {
			return &b.Categories[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
}

// Deactivate stamps the deactivation instant. Calling it on an already
// deactivated budget is a no-op.
func (b *Budget) Deactivate(now time.Time) {
	if b.DeactivationDate != nil {
		return
	}
	b.DeactivationDate = &now
}

// ValidateTransactionDate checks that a transaction date falls inside the
// budget period and, for deactivated budgets, not after the deactivation
// instant.
func (b *Budget) ValidateTransactionDate(date time.Time) error {
	if date.Before(b.StartDate) || date.After(b.EndDate) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrTransactionOutsideBudgetPeriod,
			date.Format(time.RFC3339), b.StartDate.Format(time.RFC3339), b.EndDate.Format(time.RFC3339))
	}
	if b.DeactivationDate != nil && date.After(*b.DeactivationDate) {
		return fmt.Errorf("%w: deactivated at %s", ErrCannotAddTransactionToDeactivatedBudget,
			b.DeactivationDate.Format(time.RFC3339))
	}
	return nil
}

// checkCategoryInvariants enforces name uniqueness (case-insensitive) and
// the limit-sum ceiling. excludeID skips the category being edited.
func (b *Budget) checkCategoryInvariants(name CategoryName, limit Limit, excludeID string) error {
	used := Zero(b.Currency())
	for _, c := range b.Categories {
		if c.ID == excludeID {
			continue
		}
		if c.Name.EqualFold(name) {
			return fmt.Errorf("%w: %q", ErrDuplicateCategoryName, name)
		}
		sum, err := used.Add(c.Limit.Value)
		if err != nil {
			return err
		}
		used = sum
	}

	used, err := used.Add(limit.Value)
	if err != nil {
		return fmt.Errorf("%w: category limit in %s, budget in %s",
			ErrCurrencyMismatch, limit.Value.Currency, b.Currency())
	}
	exceeded, err := b.TotalLimit.IsExceeded(used)
	if err != nil {
		return err
	}
	if exceeded {
		return fmt.Errorf("%w: used %s of %s", ErrCategoryLimitExceedsBudget, used, b.TotalLimit.Value)
	}
	return nil
}
