package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

// defaultSelfServiceSessions is the starting balance for a profile a customer
// creates for themselves.
const defaultSelfServiceSessions = 10

type CustomersHandler struct {
	ledger booking.CustomerLedger
	logger *slog.Logger
}

func NewCustomersHandler(ledger booking.CustomerLedger, logger *slog.Logger) *CustomersHandler {
	return &CustomersHandler{ledger: ledger, logger: logger}
}

type createCustomerRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Age      int     `json:"age"`
	Weight   float64 `json:"weight"`
	Premium  bool    `json:"premium"`
	Sessions *int    `json:"sessions"`
}

func (h *CustomersHandler) List(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok || requester.Role != model.RoleTrainer {
		http.Error(w, "trainer role required", http.StatusForbidden)
		return
	}

	customers, err := h.ledger.List(r.Context())
	if err != nil {
		h.logger.Error("customer listing failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if customers == nil {
		customers = []model.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

// Create registers a customer. The trainer can create any profile; a
// customer can only create their own, which starts with the self-service
// session balance and no premium flag.
func (h *CustomersHandler) Create(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	c := model.Customer{
		ID:      req.ID,
		Name:    req.Name,
		Age:     req.Age,
		Weight:  req.Weight,
		Premium: req.Premium,
	}

	switch requester.Role {
	case model.RoleTrainer:
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if req.Sessions != nil {
			c.Sessions = *req.Sessions
		}
		if c.Sessions < 0 {
			http.Error(w, "sessions must not be negative", http.StatusUnprocessableEntity)
			return
		}
	case model.RoleCustomer:
		c.ID = requester.CustomerID
		c.Premium = false
		c.Sessions = defaultSelfServiceSessions
		if _, exists, err := h.ledger.Get(r.Context(), c.ID); err != nil {
			h.logger.Error("customer lookup failed", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		} else if exists {
			http.Error(w, "profile already exists", http.StatusConflict)
			return
		}
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.ledger.Add(r.Context(), c); err != nil {
		h.logger.Error("customer create failed", "customer_id", c.ID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Update applies a partial update. Customers can adjust their own profile
// details but never their session balance or premium flag.
func (h *CustomersHandler) Update(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "customer id required", http.StatusBadRequest)
		return
	}

	var upd model.CustomerUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	if requester.Role == model.RoleCustomer {
		if id != requester.CustomerID {
			http.Error(w, "customers may only update their own profile", http.StatusForbidden)
			return
		}
		if upd.Sessions != nil || upd.Premium != nil {
			http.Error(w, "sessions and premium can only be changed by the trainer", http.StatusForbidden)
			return
		}
	}
	if upd.Sessions != nil && *upd.Sessions < 0 {
		http.Error(w, "sessions must not be negative", http.StatusUnprocessableEntity)
		return
	}

	_, exists, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("customer lookup failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "customer not found", http.StatusNotFound)
		return
	}

	if err := h.ledger.Update(r.Context(), id, upd); err != nil {
		h.logger.Error("customer update failed", "customer_id", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	c, _, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("customer reload failed", "customer_id", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete removes the customer record. Existing reservations keep their name
// snapshot and simply stop resolving to a profile.
func (h *CustomersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok || requester.Role != model.RoleTrainer {
		http.Error(w, "trainer role required", http.StatusForbidden)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "customer id required", http.StatusBadRequest)
		return
	}
	if err := h.ledger.Delete(r.Context(), id); err != nil {
		h.logger.Error("customer delete failed", "customer_id", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
