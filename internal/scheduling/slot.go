package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// SlotReason explains why a slot is not available.
type SlotReason string

const (
	// ReasonPast marks slots earlier than the query's "now" on the same day.
	ReasonPast SlotReason = "past"
	// ReasonOccupied marks slots intersecting an existing booking.
	ReasonOccupied SlotReason = "occupied"
	// ReasonClosed marks slots intersecting a schedule block.
	ReasonClosed SlotReason = "closed"
)

// Slot is a candidate appointment start time with its availability verdict.
// Slots are computed fresh on every query and never persisted.
type Slot struct {
	Time      time.Time  `json:"time"`
	Available bool       `json:"available"`
	Reason    SlotReason `json:"reason,omitempty"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// AvailabilityQuery is the input to slot generation.
type AvailabilityQuery struct {
	ClinicID       uuid.UUID
	ProfessionalID *uuid.UUID
	// Date is midnight of the requested calendar day in the clinic's
	// timezone; its Location drives all slot timestamps.
	Date time.Time
	// GranularityMinutes is the step between candidate slots. Zero falls
	// back to DefaultGranularityMinutes.
	GranularityMinutes int
	// RequestedAt is the caller's "now", used for same-day past marking.
	RequestedAt time.Time
}

// DefaultGranularityMinutes is the slot step used when neither the query nor
// the window specifies one.
const DefaultGranularityMinutes = 30
