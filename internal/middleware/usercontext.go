package middleware

import (
	"net/http"

	"github.com/benvon/habitflow/internal/request"
	"github.com/google/uuid"
)

// UserContext extracts the authenticated user's ID from the X-User-ID header
// set by the upstream auth proxy and attaches it to the request context.
// Requests without a valid user ID are rejected; identity verification
// itself happens before this service.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			http.Error(w, `{"error":"missing user identity"}`, http.StatusUnauthorized)
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, `{"error":"invalid user identity"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(request.WithUserID(r.Context(), userID)))
	})
}
