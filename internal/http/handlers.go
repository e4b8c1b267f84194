package http

import (
	"fmt"
	"net/http"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/services"
)

// moneyPayload is the wire shape for amounts: decimal major units plus the
// 3-letter currency code.
type moneyPayload struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyPayload(m core.Money) moneyPayload {
	return moneyPayload{Amount: decimal(m), Currency: m.Currency}
}

func (p moneyPayload) toMoney() (core.Money, error) {
	return core.Mint(p.Amount, p.Currency)
}

func (p moneyPayload) toLimit() (core.Limit, error) {
	value, err := p.toMoney()
	if err != nil {
		return core.Limit{}, err
	}
	return core.NewLimit(value)
}

type strategyPayload struct {
	Kind       string `json:"kind"`
	StartDay   int    `json:"start_day"`
	StartMonth int    `json:"start_month,omitempty"`
}

func (p strategyPayload) toInput() (core.BudgetStrategyInput, error) {
	switch core.StrategyKind(p.Kind) {
	case core.MonthlyStrategy:
		return core.NewMonthlyStrategyInput(p.StartDay)
	case core.YearlyStrategy:
		return core.NewYearlyStrategyInput(p.StartMonth, p.StartDay)
	default:
		return core.BudgetStrategyInput{}, fmt.Errorf("%w: unknown strategy kind %q",
			core.ErrInvalidStrategyParameter, p.Kind)
	}
}

type categoryPayload struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Limit moneyPayload `json:"limit"`
}

type budgetPayload struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	TotalLimit       moneyPayload      `json:"total_limit"`
	StartDate        time.Time         `json:"start_date"`
	EndDate          time.Time         `json:"end_date"`
	DeactivationDate *time.Time        `json:"deactivation_date,omitempty"`
	Active           bool              `json:"active"`
	Strategy         strategyPayload   `json:"strategy"`
	Categories       []categoryPayload `json:"categories"`
}

func toBudgetPayload(b *core.Budget) budgetPayload {
	categories := make([]categoryPayload, 0, len(b.Categories))
	for _, c := range b.Categories {
		categories = append(categories, categoryPayload{
			ID:    c.ID,
			Name:  c.Name.String(),
			Limit: toMoneyPayload(c.Limit.Value),
		})
	}
	return budgetPayload{
		ID:               b.ID,
		Name:             b.Name,
		TotalLimit:       toMoneyPayload(b.TotalLimit.Value),
		StartDate:        b.StartDate,
		EndDate:          b.EndDate,
		DeactivationDate: b.DeactivationDate,
		Active:           b.IsActive(),
		Strategy: strategyPayload{
			Kind:       string(b.StrategyInput.Kind),
			StartDay:   b.StrategyInput.StartDay,
			StartMonth: b.StrategyInput.StartMonth,
		},
		Categories: categories,
	}
}

type transactionPayload struct {
	ID           string       `json:"id"`
	CategoryID   string       `json:"category_id"`
	Amount       moneyPayload `json:"amount"`
	Type         string       `json:"type"`
	OccurredDate time.Time    `json:"occurred_date"`
	Description  string       `json:"description,omitempty"`
}

func toTransactionPayload(t *core.Transaction) transactionPayload {
	return transactionPayload{
		ID:           t.ID,
		CategoryID:   t.CategoryID,
		Amount:       toMoneyPayload(t.Amount),
		Type:         string(t.Type),
		OccurredDate: t.OccurredDate,
		Description:  t.Description,
	}
}

type statisticsCategoryPayload struct {
	CategoryID     string       `json:"category_id"`
	CurrentBalance moneyPayload `json:"current_balance"`
	UsedLimit      moneyPayload `json:"used_limit"`
	DailyAverage   moneyPayload `json:"daily_average"`
	DailyAvailable moneyPayload `json:"daily_available"`
}

type statisticsPayload struct {
	ID             string                      `json:"id"`
	BudgetID       string                      `json:"budget_id"`
	CurrentBalance moneyPayload                `json:"current_balance"`
	UsedLimit      moneyPayload                `json:"used_limit"`
	DailyAverage   moneyPayload                `json:"daily_average"`
	DailyAvailable moneyPayload                `json:"daily_available"`
	CreationDate   time.Time                   `json:"creation_date"`
	Categories     []statisticsCategoryPayload `json:"categories"`
}

func toStatisticsPayload(record *core.StatisticsRecord) statisticsPayload {
	categories := make([]statisticsCategoryPayload, 0, len(record.Categories))
	for _, c := range record.Categories {
		categories = append(categories, statisticsCategoryPayload{
			CategoryID:     c.CategoryID,
			CurrentBalance: toMoneyPayload(c.CurrentBalance),
			UsedLimit:      toMoneyPayload(c.UsedLimit),
			DailyAverage:   toMoneyPayload(c.DailyAverage),
			DailyAvailable: toMoneyPayload(c.DailyAvailableAmount),
		})
	}
	return statisticsPayload{
		ID:             record.ID,
		BudgetID:       record.BudgetID,
		CurrentBalance: toMoneyPayload(record.CurrentBalance),
		UsedLimit:      toMoneyPayload(record.UsedLimit),
		DailyAverage:   toMoneyPayload(record.DailyAverage),
		DailyAvailable: toMoneyPayload(record.DailyAvailableAmount),
		CreationDate:   record.CreationDate,
		Categories:     categories,
	}
}

type createBudgetRequest struct {
	Name       string          `json:"name"`
	TotalLimit moneyPayload    `json:"total_limit"`
	Strategy   strategyPayload `json:"strategy"`
	StartDate  time.Time       `json:"start_date"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	var req createBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	limit, err := req.TotalLimit.toLimit()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	input, err := req.Strategy.toInput()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if req.StartDate.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_body", "start_date is required")
		return
	}

	budget, err := s.service.CreateBudget(r.Context(), user, req.Name, limit, input, req.StartDate)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toBudgetPayload(budget))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	budget, err := s.service.GetBudget(r.Context(), r.PathValue("id"), user)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toBudgetPayload(budget))
}

func (s *Server) handleDeactivateBudget(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	budgetID := r.PathValue("id")
	at, err := s.service.Deactivate(r.Context(), budgetID, user)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.invalidateStatistics(budgetID, user)
	respondJSON(w, http.StatusOK, map[string]any{"deactivation_date": at})
}

func (s *Server) handleRenewBudget(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	renewed, err := s.service.Renew(r.Context(), r.PathValue("id"), user)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toBudgetPayload(renewed))
}

type categoryRequest struct {
	Name  string       `json:"name"`
	Limit moneyPayload `json:"limit"`
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	limit, err := req.Limit.toLimit()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	category, err := s.service.AddCategory(r.Context(), r.PathValue("id"), user, req.Name, limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, categoryPayload{
		ID:    category.ID,
		Name:  category.Name.String(),
		Limit: toMoneyPayload(category.Limit.Value),
	})
}

func (s *Server) handleEditCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	limit, err := req.Limit.toLimit()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	category, err := s.service.EditCategory(r.Context(), r.PathValue("id"), user, r.PathValue("categoryID"), req.Name, limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categoryPayload{
		ID:    category.ID,
		Name:  category.Name.String(),
		Limit: toMoneyPayload(category.Limit.Value),
	})
}

type removeCategoryRequest struct {
	Policy           string `json:"policy"`
	TargetCategoryID string `json:"target_category_id,omitempty"`
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	var req removeCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	var policy services.TransferPolicyInput
	switch services.TransferPolicyKind(req.Policy) {
	case services.DeleteTransactionsPolicy:
		policy = services.NewDeleteTransactionsPolicyInput()
	case services.MoveToOtherCategoryPolicy:
		var err error
		policy, err = services.NewMoveToOtherCategoryPolicyInput(req.TargetCategoryID)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_body",
			fmt.Sprintf("unknown transfer policy %q", req.Policy))
		return
	}

	budgetID := r.PathValue("id")
	if err := s.service.RemoveCategory(r.Context(), budgetID, user, r.PathValue("categoryID"), policy); err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.invalidateStatistics(budgetID, user)
	respondJSON(w, http.StatusNoContent, nil)
}

type transactionRequest struct {
	CategoryID   string       `json:"category_id"`
	Amount       moneyPayload `json:"amount"`
	Type         string       `json:"type"`
	OccurredDate time.Time    `json:"occurred_date"`
	Description  string       `json:"description,omitempty"`
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	amount, err := req.Amount.toMoney()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	budgetID := r.PathValue("id")
	transaction, err := s.service.AddTransaction(r.Context(), budgetID, user, req.CategoryID,
		amount, core.TransactionType(req.Type), req.OccurredDate, req.Description)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.invalidateStatistics(budgetID, user)
	respondJSON(w, http.StatusCreated, toTransactionPayload(transaction))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	amount, err := req.Amount.toMoney()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	transaction, budgetID, err := s.service.UpdateTransaction(r.Context(), r.PathValue("id"), user, req.CategoryID,
		amount, core.TransactionType(req.Type), req.OccurredDate, req.Description)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.invalidateStatistics(budgetID, user)
	respondJSON(w, http.StatusOK, toTransactionPayload(transaction))
}

func (s *Server) handleRemoveTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	budgetID, err := s.service.RemoveTransaction(r.Context(), r.PathValue("id"), user)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.invalidateStatistics(budgetID, user)
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return
	}

	budgetID := r.PathValue("id")
	cacheKey := budgetID + ":" + user
	if record, hit := s.statsCache.Get(cacheKey); hit {
		respondJSON(w, http.StatusOK, toStatisticsPayload(record))
		return
	}

	record, err := s.service.Statistics(r.Context(), budgetID, user)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.statsCache.Set(cacheKey, record)
	respondJSON(w, http.StatusOK, toStatisticsPayload(record))
}
