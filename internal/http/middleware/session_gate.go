package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/wolfman30/hsm-appointments/internal/session"
)

type currentSession interface {
	Current() session.Session
}

// RequireSession answers 401 unless a session is authenticated.
func RequireSession(sessions currentSession) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions == nil || !sessions.Current().Authenticated() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "not logged in"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
