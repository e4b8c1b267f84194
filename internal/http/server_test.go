package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"

	"github.com/google/uuid"
)

const testUser = "user-1"

func newTestServer(t *testing.T) (*Server, *storage.MemoryRepository) {
	t.Helper()

	repo := storage.NewMemoryRepository()
	clock := core.FixedClock{Instant: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}
	service := services.NewBudgetService(repo, repo, repo, nil, clock)

	s := NewServer(":0", service)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, repo
}

func doJSON(t *testing.T, s *Server, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:1234"
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}

func createTestBudget(t *testing.T, s *Server) budgetPayload {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/budgets", testUser, createBudgetRequest{
		Name:       "Household",
		TotalLimit: moneyPayload{Amount: "1000.00", Currency: "EUR"},
		Strategy:   strategyPayload{Kind: "monthly", StartDay: 1},
		StartDate:  time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create budget: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decodeBody[budgetPayload](t, rec)
}

func addTestCategory(t *testing.T, s *Server, budgetID, name, amount string) categoryPayload {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/budgets/"+budgetID+"/categories", testUser, categoryRequest{
		Name:  name,
		Limit: moneyPayload{Amount: amount, Currency: "EUR"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add category: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decodeBody[categoryPayload](t, rec)
}

func TestCreateAndGetBudget(t *testing.T) {
	s, _ := newTestServer(t)

	created := createTestBudget(t, s)
	if created.ID == "" {
		t.Fatal("expected a budget id")
	}
	if created.Name != "Household" {
		t.Errorf("Name = %q, want %q", created.Name, "Household")
	}
	if created.TotalLimit.Amount != "1000.00" || created.TotalLimit.Currency != "EUR" {
		t.Errorf("TotalLimit = %+v", created.TotalLimit)
	}
	wantEnd := time.Date(2026, time.March, 31, 23, 59, 59, 0, time.UTC)
	if !created.EndDate.Equal(wantEnd) {
		t.Errorf("EndDate = %s, want %s", created.EndDate, wantEnd)
	}
	if !created.Active {
		t.Error("expected the budget to be active")
	}

	rec := doJSON(t, s, http.MethodGet, "/budgets/"+created.ID, testUser, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get budget: status = %d", rec.Code)
	}
	got := decodeBody[budgetPayload](t, rec)
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}

	if rec := doJSON(t, s, http.MethodGet, "/budgets/"+created.ID, "someone-else", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get as another user: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if rec := doJSON(t, s, http.MethodGet, "/budgets/"+created.ID, "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("get without user header: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateBudgetValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/budgets", testUser, createBudgetRequest{
		Name:       "   ",
		TotalLimit: moneyPayload{Amount: "1000.00", Currency: "EUR"},
		Strategy:   strategyPayload{Kind: "monthly", StartDay: 1},
		StartDate:  time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank name: status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	body := decodeBody[errorResponse](t, rec)
	if body.Code != "empty_budget_name" {
		t.Errorf("error code = %q, want %q", body.Code, "empty_budget_name")
	}

	rec = doJSON(t, s, http.MethodPost, "/budgets", testUser, createBudgetRequest{
		Name:       "Household",
		TotalLimit: moneyPayload{Amount: "1000.00", Currency: "EUR"},
		Strategy:   strategyPayload{Kind: "weekly", StartDay: 1},
		StartDate:  time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown strategy: status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	rec = doJSON(t, s, http.MethodPost, "/budgets", testUser, map[string]any{
		"name":       "Household",
		"total_limt": map[string]string{"amount": "1000.00", "currency": "EUR"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	budget := createTestBudget(t, s)

	groceries := addTestCategory(t, s, budget.ID, "Groceries", "400.00")
	if groceries.Limit.Amount != "400.00" {
		t.Errorf("Limit = %q, want %q", groceries.Limit.Amount, "400.00")
	}

	rec := doJSON(t, s, http.MethodPost, "/budgets/"+budget.ID+"/categories", testUser, categoryRequest{
		Name:  "groceries",
		Limit: moneyPayload{Amount: "100.00", Currency: "EUR"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate name: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody[errorResponse](t, rec); body.Code != "duplicate_category_name" {
		t.Errorf("error code = %q, want %q", body.Code, "duplicate_category_name")
	}

	rec = doJSON(t, s, http.MethodPut, "/budgets/"+budget.ID+"/categories/"+groceries.ID, testUser, categoryRequest{
		Name:  "Food",
		Limit: moneyPayload{Amount: "500.00", Currency: "EUR"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit category: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	edited := decodeBody[categoryPayload](t, rec)
	if edited.Name != "Food" || edited.Limit.Amount != "500.00" {
		t.Errorf("edited category = %+v", edited)
	}

	rec = doJSON(t, s, http.MethodDelete, "/budgets/"+budget.ID+"/categories/"+groceries.ID, testUser, removeCategoryRequest{
		Policy: "delete_transactions",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove category: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/budgets/"+budget.ID, testUser, nil)
	got := decodeBody[budgetPayload](t, rec)
	if len(got.Categories) != 0 {
		t.Errorf("categories after removal = %d, want 0", len(got.Categories))
	}
}

func TestRemoveCategoryUnknownPolicy(t *testing.T) {
	s, _ := newTestServer(t)
	budget := createTestBudget(t, s)
	category := addTestCategory(t, s, budget.ID, "Groceries", "400.00")

	rec := doJSON(t, s, http.MethodDelete, "/budgets/"+budget.ID+"/categories/"+category.ID, testUser, removeCategoryRequest{
		Policy: "archive",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown policy: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTransactionEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	budget := createTestBudget(t, s)
	category := addTestCategory(t, s, budget.ID, "Groceries", "400.00")

	rec := doJSON(t, s, http.MethodPost, "/budgets/"+budget.ID+"/transactions", testUser, transactionRequest{
		CategoryID:   category.ID,
		Amount:       moneyPayload{Amount: "25.50", Currency: "EUR"},
		Type:         "EXPENSE",
		OccurredDate: time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC),
		Description:  "weekly shop",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add transaction: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[transactionPayload](t, rec)
	if created.Amount.Amount != "25.50" || created.Type != "EXPENSE" {
		t.Errorf("transaction = %+v", created)
	}

	rec = doJSON(t, s, http.MethodPost, "/budgets/"+budget.ID+"/transactions", testUser, transactionRequest{
		CategoryID:   category.ID,
		Amount:       moneyPayload{Amount: "10.00", Currency: "EUR"},
		Type:         "EXPENSE",
		OccurredDate: time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("out-of-period transaction: status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	rec = doJSON(t, s, http.MethodPut, "/transactions/"+created.ID, testUser, transactionRequest{
		CategoryID:   category.ID,
		Amount:       moneyPayload{Amount: "30.00", Currency: "EUR"},
		Type:         "EXPENSE",
		OccurredDate: time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC),
		Description:  "corrected",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update transaction: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[transactionPayload](t, rec)
	if updated.ID != created.ID || updated.Amount.Amount != "30.00" {
		t.Errorf("updated transaction = %+v", updated)
	}

	if rec := doJSON(t, s, http.MethodDelete, "/transactions/"+created.ID, testUser, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete transaction: status = %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodDelete, "/transactions/"+created.ID, testUser, nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete twice: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeactivateAndRenew(t *testing.T) {
	s, _ := newTestServer(t)
	budget := createTestBudget(t, s)

	rec := doJSON(t, s, http.MethodPost, "/budgets/"+budget.ID+"/renew", testUser, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("renew: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	renewed := decodeBody[budgetPayload](t, rec)
	if renewed.ID == budget.ID {
		t.Error("renewed budget should have a fresh id")
	}
	if !renewed.StartDate.Equal(budget.EndDate) {
		t.Errorf("renewed StartDate = %s, want %s", renewed.StartDate, budget.EndDate)
	}

	rec = doJSON(t, s, http.MethodPost, "/budgets/"+budget.ID+"/deactivate", testUser, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/budgets/"+budget.ID+"/renew", testUser, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("renew deactivated: status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	s, repo := newTestServer(t)
	budget := createTestBudget(t, s)

	rec := doJSON(t, s, http.MethodGet, "/budgets/"+budget.ID+"/statistics", testUser, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("statistics before any snapshot: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	record := &core.StatisticsRecord{
		ID:                   uuid.NewString(),
		UserID:               testUser,
		BudgetID:             budget.ID,
		CurrentBalance:       core.Money{Amount: 97450, Currency: "EUR"},
		DailyAvailableAmount: core.Money{Amount: 4430, Currency: "EUR"},
		DailyAverage:         core.Money{Amount: 255, Currency: "EUR"},
		UsedLimit:            core.Money{Amount: 2550, Currency: "EUR"},
		CreationDate:         time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.SaveRecord(context.Background(), record); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	rec = doJSON(t, s, http.MethodGet, "/budgets/"+budget.ID+"/statistics", testUser, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statistics: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[statisticsPayload](t, rec)
	if got.ID != record.ID {
		t.Errorf("ID = %q, want %q", got.ID, record.ID)
	}
	if got.UsedLimit.Amount != "25.50" || got.CurrentBalance.Amount != "974.50" {
		t.Errorf("figures = used %s, balance %s", got.UsedLimit.Amount, got.CurrentBalance.Amount)
	}

	// Second read comes from the cache.
	rec = doJSON(t, s, http.MethodGet, "/budgets/"+budget.ID+"/statistics", testUser, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cached statistics: status = %d", rec.Code)
	}
	if _, hit := s.statsCache.Get(budget.ID + ":" + testUser); !hit {
		t.Error("expected the snapshot to be cached")
	}

	// Another user never sees the cached snapshot.
	if rec := doJSON(t, s, http.MethodGet, "/budgets/"+budget.ID+"/statistics", "someone-else", nil); rec.Code != http.StatusNotFound {
		t.Errorf("statistics as another user: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestTransactionWritesDropCachedStatistics(t *testing.T) {
	s, _ := newTestServer(t)
	budget := createTestBudget(t, s)
	category := addTestCategory(t, s, budget.ID, "Groceries", "400.00")

	rec := doJSON(t, s, http.MethodPost, "/budgets/"+budget.ID+"/transactions", testUser, transactionRequest{
		CategoryID:   category.ID,
		Amount:       moneyPayload{Amount: "25.50", Currency: "EUR"},
		Type:         "EXPENSE",
		OccurredDate: time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add transaction: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[transactionPayload](t, rec)

	cacheKey := budget.ID + ":" + testUser
	seed := func() {
		s.statsCache.Set(cacheKey, &core.StatisticsRecord{ID: uuid.NewString(), UserID: testUser, BudgetID: budget.ID})
	}

	seed()
	rec = doJSON(t, s, http.MethodPut, "/transactions/"+created.ID, testUser, transactionRequest{
		CategoryID:   category.ID,
		Amount:       moneyPayload{Amount: "30.00", Currency: "EUR"},
		Type:         "EXPENSE",
		OccurredDate: time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update transaction: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, hit := s.statsCache.Get(cacheKey); hit {
		t.Error("update left a stale snapshot in the cache")
	}

	seed()
	if rec := doJSON(t, s, http.MethodDelete, "/transactions/"+created.ID, testUser, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete transaction: status = %d", rec.Code)
	}
	if _, hit := s.statsCache.Get(cacheKey); hit {
		t.Error("delete left a stale snapshot in the cache")
	}
}

func TestRateLimiting(t *testing.T) {
	s, _ := newTestServer(t)

	var last int
	for i := 0; i < 61; i++ {
		rec := doJSON(t, s, http.MethodPost, "/budgets", testUser, createBudgetRequest{
			Name:       fmt.Sprintf("Budget %d", i),
			TotalLimit: moneyPayload{Amount: "100.00", Currency: "EUR"},
			Strategy:   strategyPayload{Kind: "monthly", StartDay: 1},
			StartDate:  time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("61st mutation: status = %d, want %d", last, http.StatusTooManyRequests)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestLRUCacheEviction(t *testing.T) {
	cache := newLRUCache[int](2, time.Minute)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	if _, hit := cache.Get("a"); hit {
		t.Error("oldest entry should have been evicted")
	}
	if v, hit := cache.Get("c"); !hit || v != 3 {
		t.Errorf("Get(c) = %d, %t", v, hit)
	}

	cache.Delete("b")
	if _, hit := cache.Get("b"); hit {
		t.Error("deleted entry should be gone")
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	cache := newLRUCache[int](10, time.Nanosecond)
	cache.Set("a", 1)
	time.Sleep(time.Millisecond)

	if _, hit := cache.Get("a"); hit {
		t.Error("expired entry should miss")
	}
	cache.Set("b", 2)
	time.Sleep(time.Millisecond)
	if cleaned := cache.CleanExpired(); cleaned != 1 {
		t.Errorf("CleanExpired() = %d, want 1", cleaned)
	}
}
