// Package scheduling implements the appointment availability core: slot
// generation, race-safe booking commits and the appointment lifecycle.
package scheduling

import "time"

// Clock supplies the current time. Every core path takes it injected so
// availability and commit decisions are deterministic under test and all
// concurrent callers of one request share a single notion of "now".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Test helper.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.At }
