package middleware

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/store"
)

// UserHeader carries the acting family member's id. The API trusts the
// reverse proxy in front of it to have authenticated the user; requests
// without the header are anonymous and rejected.
const UserHeader = "X-Chorewheel-User"

// Identity resolves the user header against the family store and attaches
// an AuthContext. Inactive users, and users of deactivated families, do
// not resolve.
func Identity(families *store.FamilyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(UserHeader)
			if raw == "" {
				http.Error(w, "Missing user identity", http.StatusUnauthorized)
				return
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "Invalid user identity", http.StatusUnauthorized)
				return
			}

			u, err := families.GetActiveUser(id)
			if err != nil {
				http.Error(w, "Identity lookup failed", http.StatusServiceUnavailable)
				return
			}
			if u == nil {
				http.Error(w, "Unknown user", http.StatusUnauthorized)
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID:   u.ID,
				FamilyID: u.FamilyID,
				Role:     u.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireParent rejects requests from non-parent users.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			http.Error(w, "Parent role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireChild rejects requests from non-child users.
func RequireChild(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsChild(r.Context()) {
			http.Error(w, "Child role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
