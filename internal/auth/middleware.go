package auth

import (
	"context"
	"net/http"

	"github.com/avolkov/chatter/internal/api"
	"github.com/avolkov/chatter/internal/domain"
	"github.com/avolkov/chatter/internal/store"
	"github.com/avolkov/chatter/internal/token"
)

type contextKey int

const userKey contextKey = iota

// UserFromContext extracts the authenticated user from the request context.
// Returns nil if the request did not pass RequireAuth.
func UserFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userKey).(*domain.User); ok {
		return u
	}
	return nil
}

// RequireAuth verifies the session cookie and injects the authenticated user
// into the request context. Handlers behind it never run without an identity.
func RequireAuth(repo store.Repository, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				api.Error(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			userID, err := token.ParseUserID(cookie.Value, secret)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			user, err := repo.GetUserByID(r.Context(), userID)
			if err != nil {
				api.Internal(w)
				return
			}
			if user == nil {
				api.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
