package scheduling

import (
	"sort"
	"time"

	"github.com/clinagenda/booking-platform/internal/workinghours"
)

// GenerateSlots expands working-hours windows into candidate slots and marks
// each one past, closed, occupied or available.
//
// The function is pure: identical inputs produce identical output, and the
// only notion of "now" is q.RequestedAt. That keeps it trivially testable
// and lets the committer reuse the same logic for server-side re-validation.
//
// windows must already be filtered to the query's weekday and resource key.
// An empty windows slice yields an empty result, which callers read as "no
// schedule configured" as opposed to "fully booked".
func GenerateSlots(q AvailabilityQuery, windows []workinghours.Window, occupied, blocked []Interval) []Slot {
	if len(windows) == 0 {
		return nil
	}

	loc := q.Date.Location()
	year, month, day := q.Date.Date()
	requestedLocal := q.RequestedAt.In(loc)
	sameDay := requestedLocal.Year() == year &&
		requestedLocal.Month() == month &&
		requestedLocal.Day() == day

	// Overlapping windows are rejected upstream at write time, but stale
	// configurations may still reach us; dedupe candidate times defensively.
	seen := make(map[int64]struct{})
	var slots []Slot

	for i := range windows {
		w := &windows[i]
		startMin, endMin, err := w.Minutes()
		if err != nil {
			continue // malformed row, upstream validation missed it
		}
		step := q.GranularityMinutes
		if step <= 0 {
			step = w.SlotMinutes
		}
		if step <= 0 {
			step = DefaultGranularityMinutes
		}

		// The final slot must end at or before the window's end; no partial
		// slot past endTime is emitted.
		for min := startMin; min+step <= endMin; min += step {
			start := time.Date(year, month, day, 0, min, 0, 0, loc)
			if _, dup := seen[start.Unix()]; dup {
				continue
			}
			seen[start.Unix()] = struct{}{}

			iv := Interval{Start: start, End: start.Add(time.Duration(step) * time.Minute)}
			slot := Slot{Time: start, Available: true}
			switch {
			// A slot starting exactly at the request time is already past:
			// booking requires a strictly future start, so offering it
			// would advertise an unbookable slot.
			case sameDay && !start.After(q.RequestedAt):
				slot.Available = false
				slot.Reason = ReasonPast
			case overlapsAny(iv, blocked):
				slot.Available = false
				slot.Reason = ReasonClosed
			case overlapsAny(iv, occupied):
				slot.Available = false
				slot.Reason = ReasonOccupied
			}
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Time.Before(slots[j].Time) })
	return slots
}

func overlapsAny(iv Interval, others []Interval) bool {
	for _, other := range others {
		if iv.Overlaps(other) {
			return true
		}
	}
	return false
}
