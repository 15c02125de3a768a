package appointments

import "errors"

var (
	// ErrNotFound is returned for ids missing from the working set or outside the caller's view.
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrAlreadyCancelled is returned when cancelling a cancelled (or cancelling) appointment.
	ErrAlreadyCancelled = errors.New("appointments: appointment is already cancelled")

	// ErrBookingNotPermitted is returned when a non-patient session tries to book.
	ErrBookingNotPermitted = errors.New("appointments: only patients can book appointments")

	// ErrBookedNotSynced is returned when the service accepted a booking but the
	// refetch that should pick it up failed. The booking stands and the draft is
	// cleared; the working set is out of date until the next successful load.
	ErrBookedNotSynced = errors.New("appointments: booked but the appointment list is out of date")
)
