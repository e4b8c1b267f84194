package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"bilancio/internal/core"
)

const maxRequestBody = 1 << 20 // 1MB

// errorResponse is the uniform error body: a stable machine code plus a
// human-readable message.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: code, Message: message})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// decodeJSON reads a bounded request body into dst, rejecting unknown fields
// so client typos surface as 400s instead of silently dropped values.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// userID extracts the authenticated user from the X-User-ID header. An
// empty header is an unauthenticated request.
func userID(r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	return id, id != ""
}

// respondDomainError maps domain errors to HTTP statuses: lookups to 404,
// version conflicts to 409, every other domain validation to 422. Anything
// outside the domain error type is a 500 with the details kept server-side.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *core.Error
	if !errors.As(err, &domainErr) {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, core.ErrBudgetNotFound),
		errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, core.ErrTransactionNotFound),
		errors.Is(err, core.ErrStatisticsRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrNotCompatibleVersion):
		status = http.StatusConflict
	}
	writeError(w, status, domainErr.Code, err.Error())
}

// decimal renders a subunit amount in major units, e.g. "1354.50".
func decimal(m core.Money) string {
	sub := m.Amount
	sign := ""
	if sub < 0 {
		sign = "-"
		sub = -sub
	}
	return fmt.Sprintf("%s%d.%02d", sign, sub/100, sub%100)
}
