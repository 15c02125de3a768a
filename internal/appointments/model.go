package appointments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/internal/hsmapi"
	"github.com/wolfman30/hsm-appointments/internal/session"
)

// DateLayout is the calendar-date format exchanged with the service.
const DateLayout = "2006-01-02"

// Status of an appointment. Cancelled is terminal.
type Status string

const (
	StatusScheduled Status = hsmapi.StatusScheduled
	StatusCancelled Status = hsmapi.StatusCancelled
)

func parseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusScheduled
	}
}

// Author labels who wrote a note.
type Author string

const (
	AuthorProvider Author = hsmapi.AuthorDoctor
	AuthorPatient  Author = hsmapi.AuthorPatient
)

var errNoAuthor = errors.New("role has no note author")

// AuthorFor maps the acting session's role to the note author. Note
// attribution never comes from anywhere else.
func AuthorFor(role session.Role) (Author, error) {
	switch role {
	case session.RoleProvider:
		return AuthorProvider, nil
	case session.RolePatient:
		return AuthorPatient, nil
	default:
		return "", fmt.Errorf("appointments: %w: %q", errNoAuthor, role)
	}
}

// Mutation names a kind of unconfirmed optimistic change.
type Mutation string

const (
	MutationCancelling Mutation = "cancelling"
	MutationAddingNote Mutation = "addingNote"
)

// Note is one entry of an appointment's append-only note sequence.
type Note struct {
	Author Author `json:"author"`
	Text   string `json:"text"`
	// Pending is true while the note awaits server confirmation.
	Pending bool `json:"pending,omitempty"`

	token string
}

// Appointment is the client's copy of an appointment record.
type Appointment struct {
	ID           int64      `json:"id"`
	ProviderName string     `json:"provider_name"`
	PatientName  string     `json:"patient_name"`
	Date         string     `json:"date"`
	Status       Status     `json:"status"`
	Notes        []Note     `json:"notes"`
	Pending      []Mutation `json:"pending,omitempty"`
}

func (a Appointment) clone() Appointment {
	out := a
	out.Notes = append([]Note(nil), a.Notes...)
	out.Pending = append([]Mutation(nil), a.Pending...)
	if out.Notes == nil {
		out.Notes = []Note{}
	}
	return out
}

func fromWire(rec hsmapi.Appointment) Appointment {
	notes := make([]Note, 0, len(rec.Notes))
	for _, n := range rec.Notes {
		notes = append(notes, Note{Author: Author(n.Author), Text: n.Text})
	}
	return Appointment{
		ID:           rec.ID,
		ProviderName: rec.DoctorName,
		PatientName:  rec.PatientName,
		Date:         rec.Date,
		Status:       parseStatus(rec.Status),
		Notes:        notes,
	}
}

// Draft is the transient input of a new booking.
type Draft struct {
	Date         string `json:"date"`
	Note         string `json:"note"`
	ProviderName string `json:"provider_name,omitempty"`
}

// Validate checks the draft before anything is sent.
func (d *Draft) Validate() error {
	if d == nil {
		return apperrors.Required("date")
	}
	date := strings.TrimSpace(d.Date)
	if date == "" {
		return apperrors.Required("date")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return &apperrors.ValidationError{Field: "date", Reason: "must be a calendar date (YYYY-MM-DD)"}
	}
	if strings.TrimSpace(d.Note) == "" {
		return apperrors.Required("note")
	}
	return nil
}

// Reset discards the draft after a successful submission.
func (d *Draft) Reset() {
	if d == nil {
		return
	}
	*d = Draft{}
}
