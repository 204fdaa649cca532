package scheduling

import (
	"errors"
	"fmt"

	"github.com/clinagenda/booking-platform/internal/appointments"
)

// Booking errors. All are deterministic request outcomes except ErrTimeout,
// which the caller may retry with backoff; the committer never retries
// internally and never leaves a half-committed row behind.
var (
	// ErrSlotTaken means the requested interval is already occupied or the
	// caller lost a race for it. The caller should re-query availability.
	ErrSlotTaken = errors.New("scheduling: slot already taken")
	// ErrInvalidWindow means the requested time falls outside every
	// configured working-hours window (or inside a schedule block).
	ErrInvalidWindow = errors.New("scheduling: requested time outside working hours")
	// ErrPastTime means the requested time is before the current time.
	ErrPastTime = errors.New("scheduling: requested time is in the past")
	// ErrTimeout means the commit gave up waiting for the booking lock.
	ErrTimeout = errors.New("scheduling: timed out waiting for booking slot")
)

// TransitionError reports an invalid lifecycle transition, naming both the
// state the appointment is in and the action that was requested.
type TransitionError struct {
	From   appointments.Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("scheduling: cannot %s an appointment in state %q", e.Action, e.From)
}
