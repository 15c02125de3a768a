package appointments

import "github.com/wolfman30/hsm-appointments/internal/session"

// Project returns the appointments visible to s. Providers see everything,
// patients only their own, anonymous sessions nothing. The input is not
// modified; results are recomputed on every call.
func Project(all []Appointment, s session.Session) []Appointment {
	if !s.Authenticated() {
		return []Appointment{}
	}
	out := make([]Appointment, 0, len(all))
	for _, a := range all {
		if visibleTo(a, s) {
			out = append(out, a)
		}
	}
	return out
}

func visibleTo(a Appointment, s session.Session) bool {
	switch s.Role {
	case session.RoleProvider:
		return true
	case session.RolePatient:
		return a.PatientName == s.Identity
	default:
		return false
	}
}
