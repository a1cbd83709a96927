package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mobrickeu-cmd/gym-planner/libs/auth"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

type AuthHandler struct {
	ledger      booking.CustomerLedger
	jwtSecret   string
	trainerHash string
	tokenTTL    time.Duration
	logger      *slog.Logger
}

func NewAuthHandler(ledger booking.CustomerLedger, jwtSecret, trainerHash string, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AuthHandler{
		ledger:      ledger,
		jwtSecret:   jwtSecret,
		trainerHash: trainerHash,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

type loginRequest struct {
	Role       string `json:"role"`
	CustomerID string `json:"customer_id"`
	Password   string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	// Registered is false when a customer logs in with an id that has no
	// profile yet. The client is expected to create one before booking.
	Registered bool `json:"registered"`
}

// Login issues an HS256 token. The trainer authenticates with the shared
// credential. Customers identify themselves by id alone: an id without a
// profile still gets a token so the holder can create their own profile,
// and stays locked out of everything that needs one until they do.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	now := time.Now().UTC()
	claims := auth.Claims{
		Exp: now.Add(h.tokenTTL).Unix(),
		Iat: now.Unix(),
	}

	registered := true
	switch model.Role(req.Role) {
	case model.RoleTrainer:
		if h.trainerHash == "" {
			http.Error(w, "trainer login not configured", http.StatusServiceUnavailable)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h.trainerHash), []byte(req.Password)); err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		claims.Sub = model.TrainerCustomerID
		claims.Role = string(model.RoleTrainer)

	case model.RoleCustomer:
		if req.CustomerID == "" {
			http.Error(w, "customer_id required", http.StatusBadRequest)
			return
		}
		c, ok, err := h.ledger.Get(r.Context(), req.CustomerID)
		if err != nil {
			h.logger.Error("customer lookup failed", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		claims.Sub = req.CustomerID
		claims.Role = string(model.RoleCustomer)
		if ok {
			claims.Name = c.Name
		} else {
			registered = false
			h.logger.Info("issuing token for unprovisioned customer", "customer_id", req.CustomerID)
		}

	default:
		http.Error(w, "role must be trainer or customer", http.StatusBadRequest)
		return
	}

	token, err := auth.SignHS256(claims, h.jwtSecret)
	if err != nil {
		h.logger.Error("token signing failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokenTTL.Seconds()),
		Registered:  registered,
	})
}
