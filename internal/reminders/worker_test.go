package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinagenda/booking-platform/internal/appointments"
)

type fakeStore struct {
	mu   sync.Mutex
	due  []appointments.Appointment
	sent map[uuid.UUID]time.Time
	err  error
}

func newFakeStore(due ...appointments.Appointment) *fakeStore {
	return &fakeStore{due: due, sent: map[uuid.UUID]time.Time{}}
}

func (f *fakeStore) ListDue(_ context.Context, now time.Time, lead time.Duration) ([]appointments.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []appointments.Appointment
	for _, a := range f.due {
		if _, done := f.sent[a.ID]; done {
			continue
		}
		if a.ScheduledAt.After(now) && !a.ScheduledAt.After(now.Add(lead)) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, done := f.sent[id]; done {
		return appointments.ErrNotFound
	}
	f.sent[id] = at
	return nil
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []uuid.UUID
	failID uuid.UUID
}

func (f *fakeSender) SendReminder(_ context.Context, appt *appointments.Appointment) error {
	if appt.ID == f.failID {
		return errors.New("provider down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, appt.ID)
	return nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func confirmedAt(scheduled time.Time) appointments.Appointment {
	return appointments.Appointment{
		ID:              uuid.New(),
		ClinicID:        uuid.New(),
		PatientID:       uuid.New(),
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
		Status:          appointments.StatusConfirmed,
	}
}

func TestProcessDueSendsAndMarks(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	inWindow := confirmedAt(now.Add(12 * time.Hour))
	outOfWindow := confirmedAt(now.Add(48 * time.Hour))

	store := newFakeStore(inWindow, outOfWindow)
	sender := &fakeSender{}
	w := NewWorker(WorkerConfig{
		Store:  store,
		Sender: sender,
		Clock:  fixedClock{at: now},
		Lead:   24 * time.Hour,
	})

	require.NoError(t, w.ProcessDue(context.Background()))
	assert.Equal(t, []uuid.UUID{inWindow.ID}, sender.sent)
	assert.Contains(t, store.sent, inWindow.ID)
	assert.NotContains(t, store.sent, outOfWindow.ID)
}

func TestProcessDueIsIdempotent(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	appt := confirmedAt(now.Add(time.Hour))

	store := newFakeStore(appt)
	sender := &fakeSender{}
	w := NewWorker(WorkerConfig{Store: store, Sender: sender, Clock: fixedClock{at: now}})

	require.NoError(t, w.ProcessDue(context.Background()))
	require.NoError(t, w.ProcessDue(context.Background()))
	assert.Len(t, sender.sent, 1, "second pass must not re-send")
}

func TestProcessDueRetriesFailedSends(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	appt := confirmedAt(now.Add(time.Hour))

	store := newFakeStore(appt)
	sender := &fakeSender{failID: appt.ID}
	w := NewWorker(WorkerConfig{Store: store, Sender: sender, Clock: fixedClock{at: now}})

	require.NoError(t, w.ProcessDue(context.Background()))
	assert.Empty(t, sender.sent)
	assert.NotContains(t, store.sent, appt.ID, "failed send stays unmarked")

	// Provider recovers; next pass delivers.
	sender.failID = uuid.Nil
	require.NoError(t, w.ProcessDue(context.Background()))
	assert.Equal(t, []uuid.UUID{appt.ID}, sender.sent)
}

func TestProcessDuePropagatesStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("db down")
	w := NewWorker(WorkerConfig{Store: store, Sender: &fakeSender{}})

	assert.Error(t, w.ProcessDue(context.Background()))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := newFakeStore()
	w := NewWorker(WorkerConfig{
		Store:    store,
		Sender:   &fakeSender{},
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
