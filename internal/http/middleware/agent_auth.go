package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/idfine/chatbot-platform/internal/auth"
)

type contextKey string

const agentClaimsKey contextKey = "agentClaims"

// AgentJWT enforces an HMAC-signed agent token on live-support endpoints.
func AgentJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "agent auth disabled", http.StatusUnauthorized)
				return
			}
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")
			claims, err := auth.Parse(secret, tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), agentClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AgentClaimsFromContext returns agent JWT claims if present.
func AgentClaimsFromContext(ctx context.Context) (*auth.AgentClaims, bool) {
	claims, ok := ctx.Value(agentClaimsKey).(*auth.AgentClaims)
	return claims, ok
}
