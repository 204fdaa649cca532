package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinagenda/booking-platform/internal/appointments"
	"github.com/clinagenda/booking-platform/internal/workinghours"
)

// stubSchedule serves windows and blocks from memory.
type stubSchedule struct {
	windows []workinghours.Window
	blocks  []workinghours.Block
}

func (s *stubSchedule) ListWindows(_ context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, weekday time.Weekday) ([]workinghours.Window, error) {
	var out []workinghours.Window
	for _, w := range s.windows {
		if w.ClinicID == clinicID && w.Weekday == weekday && w.Active {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *stubSchedule) ListBlocks(_ context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to time.Time) ([]workinghours.Block, error) {
	var out []workinghours.Block
	for _, b := range s.blocks {
		if b.ClinicID == clinicID && b.StartsAt.Before(to) && from.Before(b.EndsAt) {
			out = append(out, b)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	booked   []uuid.UUID
	canceled []uuid.UUID
}

func (n *recordingNotifier) AppointmentBooked(_ context.Context, appt *appointments.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, appt.ID)
}

func (n *recordingNotifier) AppointmentCanceled(_ context.Context, appt *appointments.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.canceled = append(n.canceled, appt.ID)
}

type fixture struct {
	svc      *Service
	ledger   *appointments.MemoryLedger
	notifier *recordingNotifier
	clinicID uuid.UUID
	loc      *time.Location
	now      time.Time
}

// newFixture builds a service over the in-memory ledger with a Monday
// 09:00-12:00 window and "now" fixed to Sunday evening.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc := mustLocation(t, "America/Sao_Paulo")
	clinicID := uuid.New()
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, loc)

	ledger := appointments.NewMemoryLedger()
	notifier := &recordingNotifier{}
	svc := NewService(ServiceConfig{
		Ledger: ledger,
		Schedule: &stubSchedule{
			windows: []workinghours.Window{{
				ID:          uuid.New(),
				ClinicID:    clinicID,
				Weekday:     time.Monday,
				StartTime:   "09:00",
				EndTime:     "12:00",
				SlotMinutes: 30,
				Active:      true,
			}},
		},
		Clock:    FixedClock{At: now},
		Notifier: notifier,
		LockWait: time.Second,
	})
	return &fixture{svc: svc, ledger: ledger, notifier: notifier, clinicID: clinicID, loc: loc, now: now}
}

func (f *fixture) slot(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, f.loc)
}

func (f *fixture) request(hour, min int) BookingRequest {
	return BookingRequest{
		ClinicID:    f.clinicID,
		PatientID:   uuid.New(),
		ScheduledAt: f.slot(hour, min),
		Location:    f.loc,
	}
}

func TestBookOpenSlot(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.Book(context.Background(), f.request(9, 30))
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusPending, appt.Status)
	assert.Equal(t, 30, appt.DurationMinutes, "duration defaults to the window's slot length")
	assert.Equal(t, []uuid.UUID{appt.ID}, f.notifier.booked)
}

func TestBookRejectsPastTime(t *testing.T) {
	f := newFixture(t)

	req := f.request(9, 0)
	req.ScheduledAt = f.now.Add(-time.Hour)
	_, err := f.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrPastTime)
}

func TestBookRejectsOutsideWorkingHours(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name      string
		hour, min int
	}{
		{"before opening", 8, 30},
		{"at closing", 12, 0},
		{"misaligned start", 9, 10},
		{"closed weekday", 9, 0}, // adjusted below to Tuesday
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(tc.hour, tc.min)
			if tc.name == "closed weekday" {
				req.ScheduledAt = req.ScheduledAt.AddDate(0, 0, 1)
			}
			_, err := f.svc.Book(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidWindow)
		})
	}
}

func TestBookRejectsVisitEndingAfterClose(t *testing.T) {
	f := newFixture(t)

	req := f.request(11, 30)
	req.DurationMinutes = 60 // would run until 12:30
	_, err := f.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestBookRejectsScheduleBlock(t *testing.T) {
	f := newFixture(t)
	f.svc.schedule.(*stubSchedule).blocks = []workinghours.Block{{
		ID:       uuid.New(),
		ClinicID: f.clinicID,
		StartsAt: f.slot(10, 0),
		EndsAt:   f.slot(11, 0),
		Reason:   "equipment maintenance",
	}}

	_, err := f.svc.Book(context.Background(), f.request(10, 30))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = f.svc.Book(context.Background(), f.request(9, 30))
	assert.NoError(t, err, "slot outside the block stays bookable")
}

func TestBookSameSlotTwice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), f.request(9, 0))
	require.NoError(t, err)

	_, err = f.svc.Book(context.Background(), f.request(9, 0))
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBookConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(context.Background(), f.request(10, 0))
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ErrSlotTaken)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, losses)
}

func TestCancelFreesSlotForRebooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.request(11, 0))
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, f.request(11, 0))
	require.ErrorIs(t, err, ErrSlotTaken)

	canceled, err := f.svc.Transition(ctx, appt.ID, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusCanceled, canceled.Status)
	assert.Equal(t, []uuid.UUID{appt.ID}, f.notifier.canceled)

	rebooked, err := f.svc.Book(ctx, f.request(11, 0))
	require.NoError(t, err)
	assert.NotEqual(t, appt.ID, rebooked.ID)
}

func TestTransitionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.request(9, 0))
	require.NoError(t, err)

	confirmed, err := f.svc.Transition(ctx, appt.ID, ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusConfirmed, confirmed.Status)

	// Retrying the same action is a no-op success.
	again, err := f.svc.Transition(ctx, appt.ID, ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusConfirmed, again.Status)

	completed, err := f.svc.Transition(ctx, appt.ID, ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusCompleted, completed.Status)

	// Completed is terminal.
	_, err = f.svc.Transition(ctx, appt.ID, ActionCancel)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, appointments.StatusCompleted, terr.From)
}

func TestTransitionRepeatedCancelNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.request(9, 0))
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, appt.ID, ActionCancel)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, appt.ID, ActionCancel)
	require.NoError(t, err)

	assert.Len(t, f.notifier.canceled, 1)
}

func TestTransitionUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), uuid.New(), ActionConfirm)
	assert.ErrorIs(t, err, appointments.ErrNotFound)
}

func TestAvailabilityReflectsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.request(9, 30))
	require.NoError(t, err)

	q := AvailabilityQuery{
		ClinicID:           f.clinicID,
		Date:               time.Date(2026, time.March, 2, 0, 0, 0, 0, f.loc),
		GranularityMinutes: 30,
		RequestedAt:        f.now,
	}
	slots, err := f.svc.Availability(ctx, q)
	require.NoError(t, err)
	require.Len(t, slots, 6)
	assert.Equal(t, []string{"09:30"}, slotTimes(slots, false))
	assert.Equal(t, ReasonOccupied, slots[1].Reason)

	_, err = f.svc.Transition(ctx, appt.ID, ActionCancel)
	require.NoError(t, err)

	slots, err = f.svc.Availability(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, slotTimes(slots, false), "canceled booking releases the slot")
}

func TestAvailabilityNoWindowsConfigured(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.Availability(context.Background(), AvailabilityQuery{
		ClinicID:           f.clinicID,
		Date:               time.Date(2026, time.March, 3, 0, 0, 0, 0, f.loc), // Tuesday, closed
		GranularityMinutes: 30,
		RequestedAt:        f.now,
	})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestBookTimesOutWaitingForLock(t *testing.T) {
	f := newFixture(t)
	f.svc.lockWait = 50 * time.Millisecond
	f.svc.ledger = &blockingLedger{MemoryLedger: f.ledger, hold: 500 * time.Millisecond}

	_, err := f.svc.Book(context.Background(), f.request(9, 0))
	assert.ErrorIs(t, err, ErrTimeout)
}

// blockingLedger simulates a held booking lock by stalling CreateIfFree
// until the context deadline fires.
type blockingLedger struct {
	*appointments.MemoryLedger
	hold time.Duration
}

func (b *blockingLedger) CreateIfFree(ctx context.Context, appt appointments.Appointment) (*appointments.Appointment, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.hold):
		return b.MemoryLedger.CreateIfFree(ctx, appt)
	}
}
