// Package workinghours manages the per-clinic open intervals the scheduler
// reads: weekly working-hours windows and ad-hoc schedule blocks.
package workinghours

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Window is one open interval of a clinic's (or professional's) week.
// Times are clock strings ("08:00") local to the clinic's timezone; the same
// weekday may carry several windows (morning and afternoon shifts).
type Window struct {
	ID             uuid.UUID    `json:"id"`
	ClinicID       uuid.UUID    `json:"clinic_id"`
	ProfessionalID *uuid.UUID   `json:"professional_id,omitempty"`
	Weekday        time.Weekday `json:"weekday"`
	StartTime      string       `json:"start_time"`
	EndTime        string       `json:"end_time"`
	SlotMinutes    int          `json:"slot_minutes"`
	Active         bool         `json:"active"`
}

// Block is an ad-hoc closed interval (holiday, vacation, equipment downtime).
// Slots inside a block are reported as closed and commits into one are
// rejected.
type Block struct {
	ID             uuid.UUID  `json:"id"`
	ClinicID       uuid.UUID  `json:"clinic_id"`
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	Reason         string     `json:"reason,omitempty"`
}

// Validation errors. ErrWindowOverlap enforces the write-time rejection of
// overlapping windows for the same (clinic, professional, weekday).
var (
	ErrInvalidWindow = errors.New("workinghours: invalid window")
	ErrWindowOverlap = errors.New("workinghours: window overlaps an existing window")
	ErrNotFound      = errors.New("workinghours: not found")
)

// ParseClockTime converts an "HH:MM" string into minutes since midnight.
func ParseClockTime(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("workinghours: bad clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("workinghours: clock time %q out of range", s)
	}
	return h*60 + m, nil
}

// Minutes returns the window bounds as minutes since midnight.
func (w *Window) Minutes() (start, end int, err error) {
	start, err = ParseClockTime(w.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseClockTime(w.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Validate checks the window's internal invariants.
func (w *Window) Validate() error {
	if w.ClinicID == uuid.Nil {
		return fmt.Errorf("%w: clinic_id required", ErrInvalidWindow)
	}
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidWindow, w.Weekday)
	}
	if w.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot_minutes must be positive", ErrInvalidWindow)
	}
	start, end, err := w.Minutes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	if start >= end {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidWindow, w.StartTime, w.EndTime)
	}
	return nil
}

// Overlaps reports whether two windows on the same weekday share any minute.
// Windows on different weekdays or resource keys never overlap.
func (w *Window) Overlaps(other *Window) bool {
	if w.Weekday != other.Weekday || w.ClinicID != other.ClinicID {
		return false
	}
	if !sameProfessional(w.ProfessionalID, other.ProfessionalID) {
		return false
	}
	ws, we, err := w.Minutes()
	if err != nil {
		return false
	}
	os, oe, err := other.Minutes()
	if err != nil {
		return false
	}
	return ws < oe && os < we
}

func sameProfessional(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
