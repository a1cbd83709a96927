package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/policy"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineError translates engine and policy errors into HTTP statuses.
// Anything unrecognized is an internal failure and stays opaque to clients.
func writeEngineError(w http.ResponseWriter, err error) {
	var vErr *policy.ValidationError
	switch {
	case errors.Is(err, booking.ErrSlotFull):
		http.Error(w, "time slot is full", http.StatusConflict)
	case errors.Is(err, booking.ErrPastDate):
		http.Error(w, "cannot book a past date", http.StatusUnprocessableEntity)
	case errors.Is(err, booking.ErrSlotOutOfRange):
		http.Error(w, "time slot is outside the bookable window", http.StatusUnprocessableEntity)
	case errors.Is(err, booking.ErrNoProfile):
		http.Error(w, "no customer profile", http.StatusForbidden)
	case errors.Is(err, booking.ErrNoSessionsRemaining):
		http.Error(w, "no sessions remaining", http.StatusPaymentRequired)
	case errors.Is(err, booking.ErrMonthOutOfRange):
		http.Error(w, "month outside the browsable range", http.StatusUnprocessableEntity)
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
