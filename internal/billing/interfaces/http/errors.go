package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"water-billing/internal/auth"
	billing "water-billing/internal/billing/domain"
	"water-billing/internal/calendar"
)

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, billing.ErrEmptyApartmentID), errors.Is(err, calendar.ErrInvalidMonth):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, billing.ErrInvalidRate), errors.Is(err, billing.ErrInvalidEffectiveFrom):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	case errors.Is(err, billing.ErrPaymentNotFound), errors.Is(err, billing.ErrTariffNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrInvalidTransition), errors.Is(err, billing.ErrNoReadingsForMonth):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, billing.ErrNoTariffConfigured):
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// resolveApartment picks the caller's own apartment unless an admin names one.
func resolveApartment(r *http.Request, requested string) (string, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return "", auth.ErrUnauthorized
	}
	apartmentID := requested
	if apartmentID == "" {
		apartmentID = identity.ApartmentID
	}
	if apartmentID == "" {
		return "", billing.ErrEmptyApartmentID
	}
	if err := auth.EnsureApartmentAccess(r.Context(), apartmentID); err != nil {
		return "", err
	}
	return apartmentID, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
