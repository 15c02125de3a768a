package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/internal/appointments"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

type appointmentService interface {
	Visible() []appointments.Appointment
	Loaded() bool
	LoadAll(ctx context.Context) error
	Book(ctx context.Context, d *appointments.Draft) (appointments.Appointment, error)
	Cancel(ctx context.Context, id int64) error
	AddNote(ctx context.Context, id int64, text string) (appointments.Note, error)
	Lookup(id int64) (appointments.Appointment, bool)
}

// AppointmentsHandler serves the acting session's view of the working set.
type AppointmentsHandler struct {
	store  appointmentService
	logger *logging.Logger
}

// AppointmentsResponse is the projected working set.
type AppointmentsResponse struct {
	Loaded       bool                       `json:"loaded"`
	Appointments []appointments.Appointment `json:"appointments"`
}

func NewAppointmentsHandler(store appointmentService, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{store: store, logger: logger}
}

// List returns the appointments visible to the acting session.
// GET /appointments
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AppointmentsResponse{
		Loaded:       h.store.Loaded(),
		Appointments: h.store.Visible(),
	})
}

// Refresh refetches the working set now.
// POST /appointments/refresh
func (h *AppointmentsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.LoadAll(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.List(w, r)
}

// Book submits a booking for the acting patient.
// POST /appointments
func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	var draft appointments.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	appt, err := h.store.Book(r.Context(), &draft)
	if errors.Is(err, appointments.ErrBookedNotSynced) {
		h.logger.Warn("booking accepted with stale working set", "error", err)
		writeJSON(w, http.StatusAccepted, map[string]string{
			"message": "Appointment booked",
			"warning": "appointment list is out of date: " + apperrors.Reason(err),
		})
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if appt.ID == 0 {
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Appointment booked"})
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Cancel cancels one appointment.
// POST /appointments/{id}/cancel
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	if err := h.store.Cancel(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.writeAppointment(w, id)
}

// AddNote appends a note authored by the acting session.
// POST /appointments/{id}/notes
func (h *AppointmentsHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.store.AddNote(r.Context(), id, req.Text); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.writeAppointment(w, id)
}

func (h *AppointmentsHandler) writeAppointment(w http.ResponseWriter, id int64) {
	appt, ok := h.store.Lookup(id)
	if !ok {
		// cleared by a logout while the request was in flight
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func appointmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "invalid appointment id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
