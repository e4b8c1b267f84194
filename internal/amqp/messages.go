package amqp

import (
	"encoding/json"
	"time"
)

// EventKind names a domain event on the wire.
type EventKind string

const (
	EventBudgetCreated        EventKind = "budget_created"
	EventBudgetDeactivated    EventKind = "budget_deactivated"
	EventBudgetRenewed        EventKind = "budget_renewed"
	EventCategoryAdded        EventKind = "category_added"
	EventCategoryEdited       EventKind = "category_edited"
	EventCategoryRemoved      EventKind = "category_removed"
	EventTransactionAdded     EventKind = "transaction_added"
	EventTransactionUpdated   EventKind = "transaction_updated"
	EventTransactionRemoved   EventKind = "transaction_removed"
	EventStatisticsCalculated EventKind = "statistics_calculated"
)

// TriggersRecalculation reports whether the event invalidates the budget's
// statistics snapshot. The statistics worker recalculates on these.
func (k EventKind) TriggersRecalculation() bool {
	switch k {
	case EventTransactionAdded, EventTransactionUpdated, EventTransactionRemoved,
		EventCategoryAdded, EventCategoryEdited, EventCategoryRemoved:
		return true
	}
	return false
}

// Event is the message published after a successful mutation. Identifiers
// are UUID strings and monetary amounts integer subunits; consumers fetch
// whatever else they need from storage.
type Event struct {
	Kind           EventKind  `json:"kind"`
	BudgetID       string     `json:"budget_id"`
	UserID         string     `json:"user_id"`
	CategoryID     string     `json:"category_id,omitempty"`
	TransactionID  string     `json:"transaction_id,omitempty"`
	StatisticsID   string     `json:"statistics_id,omitempty"`
	AmountSubunits int64      `json:"amount_subunits,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	OccurredDate   *time.Time `json:"occurred_date,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// NewEvent stamps a minimal event for the given budget.
func NewEvent(kind EventKind, budgetID, userID string) *Event {
	return &Event{
		Kind:      kind,
		BudgetID:  budgetID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// WithCategory attaches the category identifier.
func (e *Event) WithCategory(categoryID string) *Event {
	e.CategoryID = categoryID
	return e
}

// WithTransaction attaches the transaction identifier and its amount.
func (e *Event) WithTransaction(transactionID string, amountSubunits int64, currency string, occurred time.Time) *Event {
	e.TransactionID = transactionID
	e.AmountSubunits = amountSubunits
	e.Currency = currency
	e.OccurredDate = &occurred
	return e
}

// WithStatistics attaches the statistics record identifier.
func (e *Event) WithStatistics(statisticsID string) *Event {
	e.StatisticsID = statisticsID
	return e
}

// ToJSON converts the event to JSON bytes.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON parses an event from JSON bytes.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
