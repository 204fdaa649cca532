package scheduling

import (
	"github.com/clinagenda/booking-platform/internal/appointments"
)

// Action is a requested appointment lifecycle step.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionNoShow   Action = "no_show"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionConfirm, ActionComplete, ActionCancel, ActionNoShow:
		return true
	}
	return false
}

// target returns the status an action drives toward.
func (a Action) target() appointments.Status {
	switch a {
	case ActionConfirm:
		return appointments.StatusConfirmed
	case ActionComplete:
		return appointments.StatusCompleted
	case ActionCancel:
		return appointments.StatusCanceled
	case ActionNoShow:
		return appointments.StatusNoShow
	}
	return ""
}

// NextStatus resolves the status an appointment moves to when action is
// applied from current. Applying an action whose target equals the current
// status is a no-op rather than an error, so retried requests stay safe.
//
// Allowed moves:
//
//	pending   -> confirmed (confirm), canceled (cancel)
//	confirmed -> completed (complete), canceled (cancel), no_show (no_show)
//
// completed, canceled and no_show are terminal.
func NextStatus(current appointments.Status, action Action) (appointments.Status, error) {
	if !action.Valid() {
		return "", &TransitionError{From: current, Action: action}
	}
	if action.target() == current {
		return current, nil
	}

	switch current {
	case appointments.StatusPending:
		switch action {
		case ActionConfirm:
			return appointments.StatusConfirmed, nil
		case ActionCancel:
			return appointments.StatusCanceled, nil
		}
	case appointments.StatusConfirmed:
		switch action {
		case ActionComplete:
			return appointments.StatusCompleted, nil
		case ActionCancel:
			return appointments.StatusCanceled, nil
		case ActionNoShow:
			return appointments.StatusNoShow, nil
		}
	}
	return "", &TransitionError{From: current, Action: action}
}
