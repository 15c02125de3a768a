package appointments

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/hsm-appointments/internal/hsmapi"
	"github.com/wolfman30/hsm-appointments/internal/observability/metrics"
	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

// fakeService records calls and lets tests intercept each one. Hooks run
// outside the fake's lock, after the request has been recorded.
type fakeService struct {
	mu      sync.Mutex
	records []hsmapi.Appointment
	created *hsmapi.Appointment

	onList   func() error
	onCancel func(id int64) error
	onNote   func(id int64, req hsmapi.AddNoteRequest) error
	onCreate func(req hsmapi.CreateAppointmentRequest) error

	lists   int
	cancels []int64
	notes   []hsmapi.AddNoteRequest
	creates []hsmapi.CreateAppointmentRequest
}

func (f *fakeService) ListAppointments(ctx context.Context) ([]hsmapi.Appointment, error) {
	f.mu.Lock()
	f.lists++
	out := make([]hsmapi.Appointment, len(f.records))
	for i, r := range f.records {
		r.Notes = append([]hsmapi.Note(nil), r.Notes...)
		out[i] = r
	}
	hook := f.onList
	f.mu.Unlock()
	if hook != nil {
		if err := hook(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *fakeService) CancelAppointment(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.cancels = append(f.cancels, id)
	hook := f.onCancel
	f.mu.Unlock()
	if hook != nil {
		return hook(id)
	}
	return nil
}

func (f *fakeService) AddNote(ctx context.Context, id int64, req hsmapi.AddNoteRequest) error {
	f.mu.Lock()
	f.notes = append(f.notes, req)
	hook := f.onNote
	f.mu.Unlock()
	if hook != nil {
		return hook(id, req)
	}
	return nil
}

func (f *fakeService) CreateAppointment(ctx context.Context, req hsmapi.CreateAppointmentRequest) (*hsmapi.Appointment, error) {
	f.mu.Lock()
	f.creates = append(f.creates, req)
	hook := f.onCreate
	created := f.created
	f.mu.Unlock()
	if hook != nil {
		if err := hook(req); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (f *fakeService) setRecords(records ...hsmapi.Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

func (f *fakeService) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeService) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancels)
}

func (f *fakeService) noteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

func (f *fakeService) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

type sessionStub struct {
	mu sync.Mutex
	s  session.Session
}

func (s *sessionStub) Current() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}

func (s *sessionStub) set(next session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s = next
}

var (
	bob      = session.Session{Role: session.RolePatient, Identity: "bob"}
	alice    = session.Session{Role: session.RolePatient, Identity: "alice"}
	drSmith  = session.Session{Role: session.RoleProvider, Identity: "drsmith"}
	testCtx  = context.Background()
	quietLog = logging.New("error")
)

func record(id int64, patient, date, status string, notes ...hsmapi.Note) hsmapi.Appointment {
	return hsmapi.Appointment{
		ID:          id,
		DoctorName:  "Dr. Jane Smith",
		PatientName: patient,
		Date:        date,
		Status:      status,
		Notes:       notes,
	}
}

type storeFixture struct {
	store    *Store
	svc      *fakeService
	sessions *sessionStub
	registry *prometheus.Registry
}

func newFixture(t *testing.T, as session.Session, records ...hsmapi.Appointment) *storeFixture {
	t.Helper()
	svc := &fakeService{records: records}
	sessions := &sessionStub{s: as}
	reg := prometheus.NewRegistry()
	store := NewStore(svc, sessions, quietLog).WithMetrics(metrics.NewSyncMetrics(reg))
	return &storeFixture{store: store, svc: svc, sessions: sessions, registry: reg}
}

// loaded is newFixture followed by a successful LoadAll.
func loaded(t *testing.T, as session.Session, records ...hsmapi.Appointment) *storeFixture {
	t.Helper()
	f := newFixture(t, as, records...)
	if err := f.store.LoadAll(testCtx); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	return f
}

func (f *storeFixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func ids(appts []Appointment) []int64 {
	out := make([]int64, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.ID)
	}
	return out
}

func noteTexts(a Appointment) []string {
	out := make([]string, 0, len(a.Notes))
	for _, n := range a.Notes {
		out = append(out, n.Text)
	}
	return out
}
