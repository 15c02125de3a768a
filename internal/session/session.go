// Package session owns the authentication lifecycle of the client: the
// persisted role/identity pair, the idle-timeout watchdog and the manager that
// moves between Anonymous and Authenticated.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/internal/hsmapi"
)

// Role is the kind of user a session acts as.
type Role string

const (
	RoleProvider Role = "provider"
	RolePatient  Role = "patient"
)

var (
	// ErrAlreadyAuthenticated is returned by Login when a session is active.
	ErrAlreadyAuthenticated = errors.New("session: already authenticated")

	errUnknownRole = errors.New("unknown role")
)

// ParseRole accepts the role names used by the UI and by the service.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "provider", hsmapi.UserTypeDoctor:
		return RoleProvider, nil
	case hsmapi.UserTypePatient:
		return RolePatient, nil
	default:
		return "", fmt.Errorf("session: %w %q", errUnknownRole, raw)
	}
}

// UserType is the wire value the service uses for the role.
func (r Role) UserType() string {
	switch r {
	case RoleProvider:
		return hsmapi.UserTypeDoctor
	case RolePatient:
		return hsmapi.UserTypePatient
	default:
		return ""
	}
}

// Session is an immutable snapshot of the authentication state. The zero value
// is the Anonymous session.
type Session struct {
	Role     Role   `json:"role,omitempty"`
	Identity string `json:"identity,omitempty"`
}

// Authenticated reports whether both role and identity are present.
func (s Session) Authenticated() bool {
	return s.Role != "" && s.Identity != ""
}

// Form carries the transient login/signup input. The manager clears the
// username and password after every attempt; the selected role survives.
type Form struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Clear wipes the typed credentials.
func (f *Form) Clear() {
	if f == nil {
		return
	}
	f.Username = ""
	f.Password = ""
}

func (f *Form) credentials() (hsmapi.Credentials, Role, error) {
	if f == nil {
		return hsmapi.Credentials{}, "", apperrors.Required("username")
	}
	username := strings.TrimSpace(f.Username)
	switch {
	case username == "":
		return hsmapi.Credentials{}, "", apperrors.Required("username")
	case f.Password == "":
		return hsmapi.Credentials{}, "", apperrors.Required("password")
	case strings.TrimSpace(f.Role) == "":
		return hsmapi.Credentials{}, "", apperrors.Required("role")
	}
	role, err := ParseRole(f.Role)
	if err != nil {
		return hsmapi.Credentials{}, "", &apperrors.ValidationError{Field: "role", Reason: "must be provider or patient"}
	}
	return hsmapi.Credentials{Username: username, Password: f.Password, UserType: role.UserType()}, role, nil
}
