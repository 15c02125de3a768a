// Package apperrors holds the error taxonomy shared by the session and
// appointment layers.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrFetch matches any *FetchError via errors.Is.
	ErrFetch = errors.New("appointment service request failed")

	// ErrUnauthenticated is returned when an appointment operation runs without a session.
	ErrUnauthenticated = errors.New("not authenticated")
)

// ValidationError reports a missing or malformed input caught before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

// Required builds a ValidationError for an empty required field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FetchError reports a transport failure or a non-success answer from the service.
type FetchError struct {
	Op         string
	StatusCode int
	// Reason is the human readable message supplied by the service, if any.
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("hsmapi: ")
	b.WriteString(e.Op)
	switch {
	case e.Reason != "":
		b.WriteString(": ")
		b.WriteString(e.Reason)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status=%d)", e.StatusCode)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// Reason extracts the best user-facing message from err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Reason != "" {
		return fe.Reason
	}
	return err.Error()
}
