// Package appointments owns the durable booking ledger: appointment rows,
// their lifecycle status, and the overlap-safe creation path.
package appointments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this status blocks its time
// range. Canceled, completed and no-show rows release the interval.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Appointment is a booked visit. Rows are never physically deleted; terminal
// states keep the history while releasing the time range.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	ClinicID        uuid.UUID  `json:"clinic_id"`
	ProfessionalID  *uuid.UUID `json:"professional_id,omitempty"`
	PatientID       uuid.UUID  `json:"patient_id"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          Status     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Interval returns the half-open occupied range [start, end).
func (a *Appointment) Interval() (time.Time, time.Time) {
	return a.ScheduledAt, a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Sentinel errors surfaced by ledger implementations.
var (
	// ErrOverlap means a pending or confirmed appointment already occupies
	// part of the requested range for the same clinic/professional key.
	ErrOverlap = errors.New("appointments: overlapping appointment exists")
	// ErrNotFound means no appointment row matches the given id.
	ErrNotFound = errors.New("appointments: not found")
)
