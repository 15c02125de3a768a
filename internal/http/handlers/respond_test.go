package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/internal/appointments"
	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonError(rec, "oops", http.StatusTeapot)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode json response: %v", err)
	}
	if body["error"] != "oops" {
		t.Fatalf("unexpected error message %q", body["error"])
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: apperrors.Required("date"), want: http.StatusBadRequest},
		{err: apperrors.ErrUnauthenticated, want: http.StatusUnauthorized},
		{err: appointments.ErrBookingNotPermitted, want: http.StatusForbidden},
		{err: fmt.Errorf("wrap: %w", appointments.ErrNotFound), want: http.StatusNotFound},
		{err: appointments.ErrAlreadyCancelled, want: http.StatusConflict},
		{err: session.ErrAlreadyAuthenticated, want: http.StatusConflict},
		{err: &apperrors.FetchError{Op: "list", StatusCode: 500}, want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestWriteErrorMessages(t *testing.T) {
	logger := logging.New("error")
	cases := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("session: login: %w", &apperrors.FetchError{Op: "login", StatusCode: 401, Reason: "Invalid credentials"}), want: "Invalid credentials"},
		{err: errors.New("database password leaked"), want: "internal error"},
		{err: appointments.ErrNotFound, want: appointments.ErrNotFound.Error()},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, logger, tc.err)
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, body["error"])
		}
	}
}

func TestWriteErrorValidationField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, logging.New("error"), fmt.Errorf("wrap: %w", apperrors.Required("note")))

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusBadRequest || body["field"] != "note" {
		t.Fatalf("unexpected response %d %v", rec.Code, body)
	}
}
