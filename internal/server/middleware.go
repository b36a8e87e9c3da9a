package server

import (
	"context"
	"net/http"
	"strings"

	"authsystem/internal/auth"
)

type ctxKey string

const claimsContextKey ctxKey = "claims"

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate verifies the bearer token for non-public routes. Pre-auth
// routes take only pre-auth tokens; every other route takes only access
// tokens, so a pending two-factor login cannot reach the rest of the API.
func (s *Server) authenticate(roles []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicAccess(roles) {
				next.ServeHTTP(w, r)
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				writeMessage(w, http.StatusUnauthorized, auth.CodeInvalidToken, "Unauthorized")
				return
			}

			want := auth.TokenAccess
			if roleAllowed(roles, RolePreAuth) {
				want = auth.TokenPreAuth
			}
			claims, err := s.Auth.Tokens.Verify(raw, want)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, auth.CodeInvalidToken, "Invalid or expired token")
				return
			}

			if !roleAllowed(roles, claimsRole(claims)) {
				writeMessage(w, http.StatusForbidden, auth.CodeForbidden, "Forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsRole(c *auth.Claims) string {
	switch {
	case c.TokenType == auth.TokenPreAuth:
		return RolePreAuth
	case c.IsSuperUser:
		return RoleSuperUser
	default:
		return RoleUser
	}
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	if val, ok := ctx.Value(claimsContextKey).(*auth.Claims); ok {
		return val
	}
	return nil
}
