package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(t *testing.T, allowed []string, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(method, "/appointments", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", "POST")
	}
	rec := httptest.NewRecorder()
	CORS(allowed)(handler).ServeHTTP(rec, req)
	return rec, called
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	rec, called := corsRequest(t, []string{"https://dashboard.example/"}, http.MethodGet, "https://dashboard.example", false)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") != corsAllowedMethods {
		t.Fatalf("expected allow methods header")
	}
}

func TestCORSDeniesUnknownOrigin(t *testing.T) {
	rec, _ := corsRequest(t, []string{"https://dashboard.example"}, http.MethodGet, "http://localhost:3000", false)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
}

func TestCORSDefaultsToLoopback(t *testing.T) {
	for origin, want := range map[string]bool{
		"http://localhost:3000":  true,
		"http://127.0.0.1:8080":  true,
		"http://[::1]:5173":      true,
		"https://evil.example":   false,
		"file:///tmp/index.html": false,
	} {
		rec, _ := corsRequest(t, nil, http.MethodGet, origin, false)
		got := rec.Header().Get("Access-Control-Allow-Origin") != ""
		if got != want {
			t.Fatalf("origin %q: expected allowed=%v", origin, want)
		}
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	rec, _ := corsRequest(t, []string{"*"}, http.MethodGet, "https://random.example", false)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://random.example" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	rec, called := corsRequest(t, nil, http.MethodOptions, "http://localhost:3000", true)

	if called {
		t.Fatalf("expected handler to not be called on preflight")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}
