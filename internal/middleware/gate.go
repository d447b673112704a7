package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// FlagChecker reports whether an account is locked for review. The fraud
// service implements it; a store failure inside must fail open.
type FlagChecker interface {
	IsBlocked(ctx context.Context, userID uuid.UUID) (bool, string)
}

// AccountGate rejects requests from flagged accounts. The rejection is an
// explicit "account under review" signal, distinguishable from an
// authentication failure: 423 Locked, not 401. Must run after
// Authenticate.
type AccountGate struct {
	checker FlagChecker
}

func NewAccountGate(checker FlagChecker) *AccountGate {
	return &AccountGate{checker: checker}
}

func (g *AccountGate) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			// No authenticated identity; nothing to gate.
			next.ServeHTTP(w, r)
			return
		}

		blocked, reason := g.checker.IsBlocked(r.Context(), userID)
		if !blocked {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusLocked)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":  "account under review",
			"reason": reason,
		})
	})
}
