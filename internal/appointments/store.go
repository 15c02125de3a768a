package appointments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/internal/hsmapi"
	"github.com/wolfman30/hsm-appointments/internal/observability/metrics"
	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

// DefaultProviderName is used for bookings that do not name a provider.
const DefaultProviderName = "Dr. Jane Smith"

// Service is the slice of the appointment service the store talks to.
type Service interface {
	ListAppointments(ctx context.Context) ([]hsmapi.Appointment, error)
	CancelAppointment(ctx context.Context, id int64) error
	AddNote(ctx context.Context, id int64, req hsmapi.AddNoteRequest) error
	CreateAppointment(ctx context.Context, req hsmapi.CreateAppointmentRequest) (*hsmapi.Appointment, error)
}

// SessionSource reports the acting session. *session.Manager satisfies it.
type SessionSource interface {
	Current() session.Session
}

type entry struct {
	appt    Appointment
	pending map[Mutation]int
	// touched is the store sequence of the last local change to this entry.
	touched uint64
}

func (e *entry) mark(m Mutation) {
	if e.pending == nil {
		e.pending = make(map[Mutation]int)
	}
	e.pending[m]++
}

func (e *entry) unmark(m Mutation) {
	if e.pending[m] <= 1 {
		delete(e.pending, m)
		return
	}
	e.pending[m]--
}

func (e *entry) hasPending() bool {
	return len(e.pending) > 0
}

func (e *entry) snapshot() Appointment {
	out := e.appt.clone()
	for i := range out.Notes {
		out.Notes[i].Pending = out.Notes[i].token != ""
	}
	out.Pending = out.Pending[:0]
	for _, m := range []Mutation{MutationCancelling, MutationAddingNote} {
		if e.pending[m] > 0 {
			out.Pending = append(out.Pending, m)
		}
	}
	if len(out.Pending) == 0 {
		out.Pending = nil
	}
	return out
}

// Store holds the client's working set of appointments and applies
// optimistic mutations against it.
//
// Every local change bumps a sequence number. A refetch only replaces entries
// whose last local change happened before the refetch was issued and that have
// no unconfirmed mutation, so a stale response cannot undo a newer local edit.
// Reset bumps the epoch; responses from an older epoch are discarded.
type Store struct {
	svc             Service
	sessions        SessionSource
	logger          *logging.Logger
	metrics         *metrics.SyncMetrics
	tracer          trace.Tracer
	defaultProvider string

	mu      sync.Mutex
	entries map[int64]*entry
	seq     uint64
	epoch   uint64
	loaded  bool
}

// NewStore creates an empty working set.
func NewStore(svc Service, sessions SessionSource, logger *logging.Logger) *Store {
	if svc == nil {
		panic("appointments: service cannot be nil")
	}
	if sessions == nil {
		panic("appointments: session source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		svc:             svc,
		sessions:        sessions,
		logger:          logger,
		tracer:          otel.Tracer("hsm.internal.appointments"),
		defaultProvider: DefaultProviderName,
		entries:         make(map[int64]*entry),
	}
}

// WithMetrics attaches sync metrics.
func (s *Store) WithMetrics(sm *metrics.SyncMetrics) *Store {
	s.metrics = sm
	return s
}

// WithDefaultProvider overrides the provider used when a draft names none.
func (s *Store) WithDefaultProvider(name string) *Store {
	if name = strings.TrimSpace(name); name != "" {
		s.defaultProvider = name
	}
	return s
}

func (s *Store) authenticated() (session.Session, error) {
	sess := s.sessions.Current()
	if !sess.Authenticated() {
		return sess, apperrors.ErrUnauthenticated
	}
	return sess, nil
}

// LoadAll replaces the working set with the server's list. On failure the
// previous set is kept and a FetchError is returned.
func (s *Store) LoadAll(ctx context.Context) error {
	if _, err := s.authenticated(); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "appointments.load_all")
	defer span.End()

	s.mu.Lock()
	issuedAt := s.seq
	epoch := s.epoch
	s.mu.Unlock()

	start := time.Now()
	records, err := s.svc.ListAppointments(ctx)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveRefetch("error", elapsed)
		s.logger.Warn("appointment refetch failed", "error", err)
		return fmt.Errorf("appointments: load: %w", err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.metrics.ObserveRefetch("discarded", elapsed)
		s.logger.Debug("discarding refetch from previous session")
		return nil
	}
	kept := s.mergeLocked(records, issuedAt)
	s.loaded = true
	size := len(s.entries)
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("appointments.count", size), attribute.Int("appointments.kept_local", kept))
	s.metrics.ObserveRefetch("ok", elapsed)
	s.metrics.SetWorkingSetSize(size)
	s.logger.Debug("appointments refreshed", "count", size, "kept_local", kept)
	return nil
}

// mergeLocked applies a server list issued at sequence issuedAt and returns
// how many entries kept their local state.
func (s *Store) mergeLocked(records []hsmapi.Appointment, issuedAt uint64) int {
	kept := 0
	seen := make(map[int64]struct{}, len(records))
	for _, rec := range records {
		incoming := fromWire(rec)
		seen[incoming.ID] = struct{}{}

		cur, ok := s.entries[incoming.ID]
		if !ok {
			s.entries[incoming.ID] = &entry{appt: incoming}
			continue
		}
		if cur.hasPending() || cur.touched > issuedAt {
			kept++
			continue
		}
		if cur.appt.Status == StatusCancelled && incoming.Status != StatusCancelled {
			s.logger.Warn("server reported cancelled appointment as active", "appointment_id", incoming.ID)
			incoming.Status = StatusCancelled
		}
		cur.appt = incoming
	}
	for id, cur := range s.entries {
		if _, ok := seen[id]; ok {
			continue
		}
		if cur.hasPending() || cur.touched > issuedAt {
			kept++
			continue
		}
		delete(s.entries, id)
	}
	return kept
}

// visibleLocked finds id within the acting session's view.
func (s *Store) visibleLocked(id int64, sess session.Session) (*entry, error) {
	e, ok := s.entries[id]
	if !ok || !visibleTo(e.appt, sess) {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *Store) touchLocked(e *entry) {
	s.seq++
	e.touched = s.seq
}

// Cancel marks the appointment cancelled immediately and confirms with the
// server. On failure the previous status comes back.
func (s *Store) Cancel(ctx context.Context, id int64) error {
	sess, err := s.authenticated()
	if err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "appointments.cancel", trace.WithAttributes(attribute.Int64("appointment.id", id)))
	defer span.End()

	s.mu.Lock()
	e, err := s.visibleLocked(id, sess)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if e.appt.Status == StatusCancelled {
		s.mu.Unlock()
		return ErrAlreadyCancelled
	}
	prev := e.appt.Status
	e.appt.Status = StatusCancelled
	e.mark(MutationCancelling)
	s.touchLocked(e)
	epoch := s.epoch
	s.mu.Unlock()

	err = s.svc.CancelAppointment(ctx, id)

	s.mu.Lock()
	if cur, ok := s.entries[id]; ok && s.epoch == epoch {
		cur.unmark(MutationCancelling)
		if err != nil {
			cur.appt.Status = prev
		}
		s.touchLocked(cur)
	}
	s.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveMutation("cancel", "error")
		s.metrics.ObserveRollback("cancel")
		s.logger.Warn("cancel rolled back", "appointment_id", id, "error", err)
		return fmt.Errorf("appointments: cancel %d: %w", id, err)
	}
	s.metrics.ObserveMutation("cancel", "ok")
	s.logger.Info("appointment cancelled", "appointment_id", id)
	return nil
}

// AddNote appends a note authored by the acting session's role and confirms
// with the server. On failure exactly that note is removed.
func (s *Store) AddNote(ctx context.Context, id int64, text string) (Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, apperrors.Required("text")
	}
	sess, err := s.authenticated()
	if err != nil {
		return Note{}, err
	}
	author, err := AuthorFor(sess.Role)
	if err != nil {
		return Note{}, err
	}
	ctx, span := s.tracer.Start(ctx, "appointments.add_note", trace.WithAttributes(attribute.Int64("appointment.id", id)))
	defer span.End()

	s.mu.Lock()
	e, err := s.visibleLocked(id, sess)
	if err != nil {
		s.mu.Unlock()
		return Note{}, err
	}
	note := Note{Author: author, Text: text, token: uuid.NewString()}
	e.appt.Notes = append(e.appt.Notes, note)
	e.mark(MutationAddingNote)
	s.touchLocked(e)
	epoch := s.epoch
	s.mu.Unlock()

	err = s.svc.AddNote(ctx, id, hsmapi.AddNoteRequest{Note: text, Author: string(author)})

	s.mu.Lock()
	if cur, ok := s.entries[id]; ok && s.epoch == epoch {
		cur.unmark(MutationAddingNote)
		cur.appt.Notes = settleNote(cur.appt.Notes, note.token, err == nil)
		s.touchLocked(cur)
	}
	s.mu.Unlock()

	note.token = ""
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveMutation("add_note", "error")
		s.metrics.ObserveRollback("add_note")
		s.logger.Warn("note rolled back", "appointment_id", id, "error", err)
		return Note{}, fmt.Errorf("appointments: add note to %d: %w", id, err)
	}
	s.metrics.ObserveMutation("add_note", "ok")
	s.logger.Info("note added", "appointment_id", id, "author", string(author))
	return note, nil
}

// settleNote confirms or removes the optimistic note carrying token.
func settleNote(notes []Note, token string, confirmed bool) []Note {
	out := notes[:0:0]
	for _, n := range notes {
		if n.token != token {
			out = append(out, n)
			continue
		}
		if confirmed {
			n.token = ""
			out = append(out, n)
		}
	}
	return out
}

// Book submits a new appointment for the acting patient. The draft is reset
// only when the server accepts it. When the server does not echo the record
// the store refetches and returns the new entry if it can identify it; if that
// refetch fails the error wraps ErrBookedNotSynced and the booking stands.
func (s *Store) Book(ctx context.Context, d *Draft) (Appointment, error) {
	if err := d.Validate(); err != nil {
		return Appointment{}, err
	}
	sess, err := s.authenticated()
	if err != nil {
		return Appointment{}, err
	}
	if sess.Role != session.RolePatient {
		return Appointment{}, ErrBookingNotPermitted
	}
	ctx, span := s.tracer.Start(ctx, "appointments.book")
	defer span.End()

	provider := strings.TrimSpace(d.ProviderName)
	if provider == "" {
		provider = s.defaultProvider
	}
	req := hsmapi.CreateAppointmentRequest{
		DoctorName:  provider,
		PatientName: sess.Identity,
		Date:        strings.TrimSpace(d.Date),
		Status:      string(StatusScheduled),
		Notes:       []string{strings.TrimSpace(d.Note)},
	}

	s.mu.Lock()
	known := make(map[int64]struct{}, len(s.entries))
	for id := range s.entries {
		known[id] = struct{}{}
	}
	epoch := s.epoch
	s.mu.Unlock()

	created, err := s.svc.CreateAppointment(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveMutation("book", "error")
		s.logger.Warn("booking failed", "error", err)
		return Appointment{}, fmt.Errorf("appointments: book: %w", err)
	}
	d.Reset()
	s.metrics.ObserveMutation("book", "ok")

	if created != nil {
		appt := fromWire(*created)
		s.mu.Lock()
		if s.epoch == epoch {
			e := &entry{appt: appt}
			s.touchLocked(e)
			s.entries[appt.ID] = e
			s.metrics.SetWorkingSetSize(len(s.entries))
		}
		s.mu.Unlock()
		s.logger.Info("appointment booked", "appointment_id", appt.ID, "date", appt.Date)
		return appt.clone(), nil
	}

	if err := s.LoadAll(ctx); err != nil {
		s.logger.Warn("booked but refetch failed", "error", err)
		return Appointment{}, fmt.Errorf("%w: %w", ErrBookedNotSynced, err)
	}
	appt, ok := s.findBooked(known, req)
	if ok {
		s.logger.Info("appointment booked", "appointment_id", appt.ID, "date", appt.Date)
	}
	return appt, nil
}

// findBooked picks the newest entry that was not known before the booking and
// matches its fields.
func (s *Store) findBooked(known map[int64]struct{}, req hsmapi.CreateAppointmentRequest) (Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *entry
	for id, e := range s.entries {
		if _, ok := known[id]; ok {
			continue
		}
		if e.appt.PatientName != req.PatientName || e.appt.Date != req.Date || e.appt.ProviderName != req.DoctorName {
			continue
		}
		if best == nil || id > best.appt.ID {
			best = e
		}
	}
	if best == nil {
		return Appointment{}, false
	}
	return best.snapshot(), true
}

// Lookup returns a copy of one entry regardless of the acting session.
func (s *Store) Lookup(id int64) (Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Appointment{}, false
	}
	return e.snapshot(), true
}

// Snapshot returns a copy of the whole working set ordered by date, then id.
func (s *Store) Snapshot() []Appointment {
	s.mu.Lock()
	out := make([]Appointment, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.snapshot())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Visible is the working set projected for the acting session.
func (s *Store) Visible() []Appointment {
	return Project(s.Snapshot(), s.sessions.Current())
}

// Loaded reports whether a load has completed since the last Reset.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Reset clears the working set. In-flight operations from before the reset
// no longer touch the store when they settle.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[int64]*entry)
	s.epoch++
	s.loaded = false
	s.mu.Unlock()
	s.metrics.SetWorkingSetSize(0)
}
