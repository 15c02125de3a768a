package hsmapi

// Wire values understood by the appointment service.
const (
	UserTypeDoctor  = "doctor"
	UserTypePatient = "patient"

	AuthorDoctor  = "Doctor"
	AuthorPatient = "Patient"

	StatusScheduled = "Scheduled"
	StatusCancelled = "Cancelled"
)

// Credentials is the body of the login and signup calls.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

// Appointment is an appointment record as returned by GET /appointments.
type Appointment struct {
	ID          int64  `json:"id"`
	DoctorName  string `json:"doctor_name"`
	PatientName string `json:"patient_name"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	Notes       []Note `json:"notes"`
}

// Note is a single authored note on an appointment.
type Note struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// AddNoteRequest is the body of POST /appointments/{id}/add-note.
type AddNoteRequest struct {
	Note   string `json:"note"`
	Author string `json:"author"`
}

// CreateAppointmentRequest is the body of POST /appointments.
type CreateAppointmentRequest struct {
	DoctorName  string   `json:"doctor_name"`
	PatientName string   `json:"patient_name"`
	Date        string   `json:"date"`
	Status      string   `json:"status"`
	Notes       []string `json:"notes"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

type cancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
