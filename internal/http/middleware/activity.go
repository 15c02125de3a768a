package middleware

import (
	"net/http"
	"strings"
)

// ActivityHeader marks a read request as user-initiated.
const ActivityHeader = "X-User-Activity"

// Activity reports user interaction to touch before the request is served.
// Writes always count; reads count only when they carry ActivityHeader, so
// background polling from a dashboard does not keep an idle session alive.
func Activity(touch func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if touch != nil && isUserActivity(r) {
				touch()
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MarkedActivity is Activity for routes a dashboard may call on a timer, such
// as a manual refresh: any method counts only when it carries ActivityHeader.
func MarkedActivity(touch func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if touch != nil && r.Method != http.MethodOptions && hasActivityHeader(r) {
				touch()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isUserActivity(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	case http.MethodOptions:
		return false
	}
	return hasActivityHeader(r)
}

func hasActivityHeader(r *http.Request) bool {
	v := strings.ToLower(strings.TrimSpace(r.Header.Get(ActivityHeader)))
	return v == "1" || v == "true"
}
