package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	billing "busway-cloud/internal/billing/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondDomainError maps billing sentinel errors onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrDueNotFound), errors.Is(err, billing.ErrWaiverNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrLocked):
		http.Error(w, "earlier dues are unpaid", http.StatusLocked)
	case errors.Is(err, billing.ErrOrderMismatch):
		http.Error(w, "order does not match due", http.StatusConflict)
	case errors.Is(err, billing.ErrAlreadyCaptured):
		http.Error(w, "due already paid", http.StatusBadRequest)
	case errors.Is(err, billing.ErrInvalidSignature):
		http.Error(w, "invalid signature", http.StatusBadRequest)
	case errors.Is(err, billing.ErrInvalidState):
		http.Error(w, "due is not payable", http.StatusBadRequest)
	case errors.Is(err, billing.ErrInvalidPeriod):
		http.Error(w, "invalid period", http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
