package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/internal/appointments"
	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

// maxBodyBytes caps request bodies from the dashboard.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps a core error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, appointments.ErrBookingNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, appointments.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, appointments.ErrAlreadyCancelled), errors.Is(err, session.ErrAlreadyAuthenticated):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the caller. Validation and service errors carry
// their own user-facing text; anything unexpected is logged and masked.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	status := statusFor(err)
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, status, map[string]string{"error": verr.Error(), "field": verr.Field})
	case status == http.StatusInternalServerError:
		logger.Error("request failed", "error", err)
		jsonError(w, "internal error", status)
	case errors.Is(err, apperrors.ErrFetch):
		jsonError(w, apperrors.Reason(err), status)
	default:
		jsonError(w, err.Error(), status)
	}
}
