package core

import (
	"fmt"
	"strings"
)

const (
	minCategoryNameLength = 3
	maxCategoryNameLength = 255
)

// CategoryName is a validated, trimmed category name.
type CategoryName string

// NewCategoryName trims the raw name and enforces the length bounds.
func NewCategoryName(raw string) (CategoryName, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyCategoryName
	}
	if len(name) < minCategoryNameLength {
		return "", fmt.Errorf("%w: %q", ErrCategoryNameTooShort, name)
	}
	if len(name) > maxCategoryNameLength {
		return "", ErrCategoryNameTooLong
	}
	return CategoryName(name), nil
}

// EqualFold reports case-insensitive equality with another name.
func (n CategoryName) EqualFold(other CategoryName) bool {
	return strings.EqualFold(string(n), string(other))
}

func (n CategoryName) String() string { return string(n) }

// Category is a named spending bucket inside one budget. It has no lifecycle
// of its own; the owning Budget aggregate enforces every invariant.
type Category struct {
	ID       string
	BudgetID string
	Name     CategoryName
	Limit    Limit
}
