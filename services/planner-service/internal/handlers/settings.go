package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/policy"
)

type SettingsHandler struct {
	policy *policy.Manager
	logger *slog.Logger
}

func NewSettingsHandler(policyManager *policy.Manager, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{policy: policyManager, logger: logger}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.policy.Current(r.Context()))
}

// Update replaces the booking window. Existing reservations outside the new
// window are left untouched; only new bookings are constrained.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok || requester.Role != model.RoleTrainer {
		http.Error(w, "trainer role required", http.StatusForbidden)
		return
	}

	var settings model.TimeRangeSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	if err := h.policy.Update(r.Context(), settings); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.policy.Current(r.Context()))
}

func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterFrom(r.Context())
	if !ok || requester.Role != model.RoleTrainer {
		http.Error(w, "trainer role required", http.StatusForbidden)
		return
	}

	settings, err := h.policy.Reset(r.Context())
	if err != nil {
		h.logger.Error("settings reset failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
