package api

import (
	"context"
	"net/http"
	"strings"

	"inkwell/database"
)

type contextKey string

const currentUserKey contextKey = "currentUser"

// authenticate parses an optional bearer token and puts the matching user in
// the request context. Requests without an Authorization header pass through
// anonymously; a header that is present but bad is rejected here.
func authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		const prefix = "Bearer "
		if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
			respondError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
			return
		}

		userID, err := parseToken(conf.JWTSecret, strings.TrimSpace(header[len(prefix):]))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		var user database.User
		if err := database.GetDB().First(&user, userID).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), currentUserKey, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *database.User {
	user, _ := r.Context().Value(currentUserKey).(*database.User)
	return user
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsAdmin {
			respondError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
