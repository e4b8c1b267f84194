package core

import "time"

// TransactionType tells whether a transaction adds to or draws from a budget.
type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// Valid reports whether the type is one of the two known variants.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Transaction is a single income or expense record tied to one category.
// It is a value with identity: the id is fixed, every other field can be
// rewritten in place through Update and UpdateCategory. Amounts are stored
// as positive Money; the type carries the sign.
type Transaction struct {
	ID           string
	CategoryID   string
	UserID       string
	Amount       Money
	Type         TransactionType
	OccurredDate time.Time
	Description  string
}

// Update rewrites the mutable fields of the transaction.
func (t *Transaction) Update(amount Money, transactionType TransactionType, occurred time.Time, description string) {
	t.Amount = amount
	t.Type = transactionType
	t.OccurredDate = occurred
	t.Description = description
}

// UpdateCategory reassigns the transaction to another category. Used by the
// move-transactions transfer strategy when a category is removed.
func (t *Transaction) UpdateCategory(categoryID string) {
	t.CategoryID = categoryID
}
