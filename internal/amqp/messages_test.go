package amqp

import (
	"testing"
	"time"
)

func TestEventRoundTrip(t *testing.T) {
	occurred := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	event := NewEvent(EventTransactionAdded, "budget-1", "user-1").
		WithCategory("category-1").
		WithTransaction("txn-1", 12550, "USD", occurred)

	body, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := EventFromJSON(body)
	if err != nil {
		t.Fatalf("EventFromJSON: %v", err)
	}

	if decoded.Kind != EventTransactionAdded || decoded.BudgetID != "budget-1" {
		t.Errorf("envelope fields lost: %+v", decoded)
	}
	if decoded.TransactionID != "txn-1" || decoded.AmountSubunits != 12550 || decoded.Currency != "USD" {
		t.Errorf("transaction fields lost: %+v", decoded)
	}
	if decoded.OccurredDate == nil || !decoded.OccurredDate.Equal(occurred) {
		t.Errorf("occurred date lost: %v", decoded.OccurredDate)
	}
}

func TestEventFromJSONInvalid(t *testing.T) {
	if _, err := EventFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestTriggersRecalculation(t *testing.T) {
	cases := []struct {
		kind EventKind
		want bool
	}{
		{EventTransactionAdded, true},
		{EventTransactionUpdated, true},
		{EventTransactionRemoved, true},
		{EventCategoryAdded, true},
		{EventCategoryRemoved, true},
		{EventBudgetCreated, false},
		{EventBudgetDeactivated, false},
		{EventStatisticsCalculated, false},
	}
	for _, tc := range cases {
		if got := tc.kind.TriggersRecalculation(); got != tc.want {
			t.Errorf("%s.TriggersRecalculation() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
