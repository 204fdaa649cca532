package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinagenda/booking-platform/internal/appointments"
	"github.com/clinagenda/booking-platform/internal/observability/metrics"
	"github.com/clinagenda/booking-platform/internal/workinghours"
	"github.com/clinagenda/booking-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("clinagenda.internal.scheduling")

// Ledger is the durable appointment store the service commits into.
// Implemented by appointments.Store (Postgres) and appointments.MemoryLedger.
type Ledger interface {
	CreateIfFree(ctx context.Context, appt appointments.Appointment) (*appointments.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to appointments.Status) (*appointments.Appointment, error)
	ListOccupied(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to time.Time) ([]appointments.Appointment, error)
}

// Schedule reads the clinic's configured open hours and ad-hoc blocks.
// Implemented by workinghours.Store and workinghours.CachedStore.
type Schedule interface {
	ListWindows(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, weekday time.Weekday) ([]workinghours.Window, error)
	ListBlocks(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to time.Time) ([]workinghours.Block, error)
}

// Notifier receives lifecycle events after the data change is durable.
// Implementations must be best effort; the service never fails a booking
// because a notification could not be sent.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *appointments.Appointment)
	AppointmentCanceled(ctx context.Context, appt *appointments.Appointment)
}

// BookingRequest is one attempt to claim a slot.
type BookingRequest struct {
	ClinicID        uuid.UUID
	ProfessionalID  *uuid.UUID
	PatientID       uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes int
	Notes           string
	// Location is the clinic's timezone, used to evaluate the request
	// against working hours. Defaults to ScheduledAt's own location.
	Location *time.Location
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Ledger   Ledger
	Schedule Schedule
	Clock    Clock
	Cache    *AvailabilityCache
	Metrics  *metrics.BookingMetrics
	Notifier Notifier
	Logger   *logging.Logger
	// LockWait bounds how long Book waits for the per-resource booking
	// lock before giving up with ErrTimeout.
	LockWait time.Duration
}

// Service is the booking core: it answers availability queries, commits
// bookings exactly once per slot, and drives the appointment lifecycle.
type Service struct {
	ledger   Ledger
	schedule Schedule
	clock    Clock
	cache    *AvailabilityCache
	metrics  *metrics.BookingMetrics
	notifier Notifier
	logger   *logging.Logger
	lockWait time.Duration
}

// NewService validates cfg and builds a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Ledger == nil {
		panic("scheduling: ledger required")
	}
	if cfg.Schedule == nil {
		panic("scheduling: schedule required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 3 * time.Second
	}
	return &Service{
		ledger:   cfg.Ledger,
		schedule: cfg.Schedule,
		clock:    cfg.Clock,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		lockWait: cfg.LockWait,
	}
}

// Availability computes the slot list for one clinic day. Future days are
// served from the short-TTL cache when possible; same-day queries bypass it
// because past-marking depends on the caller's "now".
func (s *Service) Availability(ctx context.Context, q AvailabilityQuery) ([]Slot, error) {
	if q.GranularityMinutes < 0 {
		q.GranularityMinutes = 0
	}
	if q.RequestedAt.IsZero() {
		q.RequestedAt = s.clock.Now()
	}

	loc := q.Date.Location()
	nowLocal := q.RequestedAt.In(loc)
	sameDay := nowLocal.Year() == q.Date.Year() && nowLocal.YearDay() == q.Date.YearDay()

	if !sameDay {
		if slots, ok := s.cache.Get(ctx, q); ok {
			s.metrics.ObserveAvailability("hit")
			return slots, nil
		}
	}

	slots, err := s.computeAvailability(ctx, q)
	if err != nil {
		return nil, err
	}

	if sameDay {
		s.metrics.ObserveAvailability("bypass")
	} else {
		s.cache.Put(ctx, q, slots)
		s.metrics.ObserveAvailability("miss")
	}
	return slots, nil
}

func (s *Service) computeAvailability(ctx context.Context, q AvailabilityQuery) ([]Slot, error) {
	dayStart := q.Date
	dayEnd := dayStart.AddDate(0, 0, 1)

	windows, err := s.schedule.ListWindows(ctx, q.ClinicID, q.ProfessionalID, q.Date.Weekday())
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []Slot{}, nil
	}

	booked, err := s.ledger.ListOccupied(ctx, q.ClinicID, q.ProfessionalID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	occupied := make([]Interval, 0, len(booked))
	for i := range booked {
		start, end := booked[i].Interval()
		occupied = append(occupied, Interval{Start: start, End: end})
	}

	blocks, err := s.schedule.ListBlocks(ctx, q.ClinicID, q.ProfessionalID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	blocked := make([]Interval, 0, len(blocks))
	for _, b := range blocks {
		blocked = append(blocked, Interval{Start: b.StartsAt, End: b.EndsAt})
	}

	slots := GenerateSlots(q, windows, occupied, blocked)
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// Book validates req against the clock, working hours and schedule blocks,
// then commits it through the ledger's race-safe creation path. Exactly one
// of N concurrent requests for the same slot wins; the rest get ErrSlotTaken.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*appointments.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "scheduling.Book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic_id", req.ClinicID.String()),
		attribute.String("scheduled_at", req.ScheduledAt.Format(time.RFC3339)),
	)

	started := s.clock.Now()
	appt, err := s.book(ctx, req)
	s.metrics.ObserveCommit(commitOutcome(err), s.clock.Now().Sub(started).Seconds())
	if err != nil {
		span.SetAttributes(attribute.String("outcome", commitOutcome(err)))
		return nil, err
	}

	s.cache.Invalidate(ctx, req.ClinicID)
	if s.notifier != nil {
		s.notifier.AppointmentBooked(ctx, appt)
	}
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"clinic_id", appt.ClinicID,
		"scheduled_at", appt.ScheduledAt,
	)
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*appointments.Appointment, error) {
	loc := req.Location
	if loc == nil {
		loc = req.ScheduledAt.Location()
	}
	local := req.ScheduledAt.In(loc)

	if !req.ScheduledAt.After(s.clock.Now()) {
		return nil, ErrPastTime
	}

	windows, err := s.schedule.ListWindows(ctx, req.ClinicID, req.ProfessionalID, local.Weekday())
	if err != nil {
		return nil, err
	}
	duration, err := fitWindow(local, req.DurationMinutes, windows)
	if err != nil {
		return nil, err
	}
	req.DurationMinutes = duration

	end := req.ScheduledAt.Add(time.Duration(duration) * time.Minute)
	blocks, err := s.schedule.ListBlocks(ctx, req.ClinicID, req.ProfessionalID, req.ScheduledAt, end)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return nil, ErrInvalidWindow
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	appt, err := s.ledger.CreateIfFree(commitCtx, appointments.Appointment{
		ClinicID:        req.ClinicID,
		ProfessionalID:  req.ProfessionalID,
		PatientID:       req.PatientID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: duration,
		Notes:           req.Notes,
	})
	switch {
	case err == nil:
		return appt, nil
	case errors.Is(err, appointments.ErrOverlap):
		return nil, ErrSlotTaken
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, ErrTimeout
	default:
		return nil, err
	}
}

// fitWindow checks that a local start time lands inside a configured window,
// aligned to the window's slot step, and that the visit ends before the
// window closes. It returns the effective duration: the request's own when
// set, otherwise the matching window's slot length.
func fitWindow(local time.Time, requested int, windows []workinghours.Window) (int, error) {
	startMinLocal := local.Hour()*60 + local.Minute()
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return 0, ErrInvalidWindow
	}

	for i := range windows {
		w := &windows[i]
		winStart, winEnd, err := w.Minutes()
		if err != nil {
			continue
		}
		step := w.SlotMinutes
		if step <= 0 {
			step = DefaultGranularityMinutes
		}
		duration := requested
		if duration <= 0 {
			duration = step
		}
		if startMinLocal < winStart || startMinLocal+duration > winEnd {
			continue
		}
		if (startMinLocal-winStart)%step != 0 {
			continue
		}
		return duration, nil
	}
	return 0, ErrInvalidWindow
}

func commitOutcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, ErrPastTime):
		return "past_time"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// Transition applies a lifecycle action to an appointment. Actions whose
// target state the row is already in succeed without writing, so clients can
// safely retry. Concurrent transitions race on a compare-and-set status
// update; the loser re-reads and either observes the same outcome or reports
// the conflict.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, action Action) (*appointments.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "scheduling.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment_id", id.String()),
		attribute.String("action", string(action)),
	)

	appt, changed, err := s.transition(ctx, id, action)
	s.metrics.ObserveTransition(string(action), transitionOutcome(err))
	if err != nil {
		return nil, err
	}

	if changed && action == ActionCancel {
		// A freed slot must show up on the next availability query.
		s.cache.Invalidate(ctx, appt.ClinicID)
		if s.notifier != nil {
			s.notifier.AppointmentCanceled(ctx, appt)
		}
	}
	s.logger.Info("appointment transition applied",
		"appointment_id", appt.ID,
		"action", action,
		"status", appt.Status,
	)
	return appt, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, action Action) (*appointments.Appointment, bool, error) {
	appt, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	next, err := NextStatus(appt.Status, action)
	if err != nil {
		return nil, false, err
	}
	if next == appt.Status {
		return appt, false, nil
	}

	updated, err := s.ledger.UpdateStatus(ctx, id, appt.Status, next)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, appointments.ErrNotFound) {
		return nil, false, err
	}

	// Lost a race. Re-read: a concurrent request may have applied the same
	// action, in which case this one is a no-op success.
	fresh, ferr := s.ledger.GetByID(ctx, id)
	if ferr != nil {
		return nil, false, ferr
	}
	if fresh.Status == next {
		return fresh, false, nil
	}
	return nil, false, &TransitionError{From: fresh.Status, Action: action}
}

func transitionOutcome(err error) string {
	var terr *TransitionError
	switch {
	case err == nil:
		return "applied"
	case errors.As(err, &terr):
		return "rejected"
	case errors.Is(err, appointments.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
