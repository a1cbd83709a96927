package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/calendar"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

type BookingHandler struct {
	engine *booking.Engine
	logger *slog.Logger
}

func NewBookingHandler(engine *booking.Engine, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, logger: logger}
}

type bookRequest struct {
	Date        string `json:"date"`
	TimeSlot    string `json:"time_slot"`
	Description string `json:"description"`
}

// Slots returns the day board for a date: per-slot occupancy plus the
// day-level availability percentage.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		http.Error(w, "date query parameter required", http.StatusBadRequest)
		return
	}
	if _, _, _, err := calendar.ParseDate(date); err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	board, err := h.engine.DayBoard(r.Context(), date)
	if err != nil {
		h.logger.Error("day board failed", "date", date, "err", err)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Date = strings.TrimSpace(req.Date)
	req.TimeSlot = strings.TrimSpace(req.TimeSlot)
	if req.Date == "" || req.TimeSlot == "" {
		http.Error(w, "date and time_slot required", http.StatusBadRequest)
		return
	}
	if _, _, _, err := calendar.ParseDate(req.Date); err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	reservation, err := h.engine.Book(r.Context(), booking.Request{
		Date:        req.Date,
		TimeSlot:    req.TimeSlot,
		Description: req.Description,
		Requester:   requester,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking.RenderFor(reservation, requester.Role, requester.CustomerID))
}

// Reservations lists reservations by date or by customer, rendered through
// the viewer's redaction rule. A customer asking for another customer's
// history is refused outright.
func (h *BookingHandler) Reservations(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))

	switch {
	case date != "":
		if _, _, _, err := calendar.ParseDate(date); err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		views, err := h.engine.ReservationsForDate(r.Context(), date, requester)
		if err != nil {
			h.logger.Error("reservation listing failed", "date", date, "err", err)
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)

	case customerID != "" || requester.Role == model.RoleCustomer:
		if customerID == "" {
			customerID = requester.CustomerID
		}
		if requester.Role == model.RoleCustomer && customerID != requester.CustomerID {
			http.Error(w, "customers may only list their own reservations", http.StatusForbidden)
			return
		}
		views, err := h.engine.ReservationsForCustomer(r.Context(), customerID, requester)
		if err != nil {
			h.logger.Error("reservation listing failed", "customer_id", customerID, "err", err)
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)

	default:
		http.Error(w, "date or customer_id query parameter required", http.StatusBadRequest)
	}
}

func (h *BookingHandler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if requester.Role != model.RoleTrainer {
		http.Error(w, "trainer role required", http.StatusForbidden)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "reservation id required", http.StatusBadRequest)
		return
	}
	if err := h.engine.Remove(r.Context(), id); err != nil {
		h.logger.Error("reservation delete failed", "reservation_id", id, "err", err)
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Calendar returns the month grid projection used to draw a Monday-first
// calendar: leading blank cells plus per-day availability summaries.
func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}
	monthNum, err := strconv.Atoi(r.PathValue("month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		http.Error(w, "invalid month", http.StatusBadRequest)
		return
	}

	grid, err := h.engine.MonthGrid(r.Context(), year, time.Month(monthNum))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}
