package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/mobrickeu-cmd/gym-planner/libs/auth"
	"github.com/mobrickeu-cmd/gym-planner/libs/httpx"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

type requesterContextKey struct{}

// RequireAuth verifies the Bearer token and places the resulting requester
// identity in the request context. The engine only ever sees this opaque
// (role, customer id) pair.
func RequireAuth(jwtSecret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			requester := booking.Requester{Role: model.Role(claims.Role)}
			if requester.Role == model.RoleCustomer {
				requester.CustomerID = claims.Sub
			}
			if requester.Role != model.RoleTrainer && requester.Role != model.RoleCustomer {
				http.Error(w, "unknown role", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), requesterContextKey{}, requester)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requesterFrom(ctx context.Context) (booking.Requester, bool) {
	requester, ok := ctx.Value(requesterContextKey{}).(booking.Requester)
	return requester, ok
}
