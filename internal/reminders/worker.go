package reminders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinagenda/booking-platform/internal/appointments"
	"github.com/clinagenda/booking-platform/pkg/logging"
)

// DueStore lists due reminders and records sends. Implemented by Store.
type DueStore interface {
	ListDue(ctx context.Context, now time.Time, lead time.Duration) ([]appointments.Appointment, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Sender delivers one reminder. Implemented by notify.Service.
type Sender interface {
	SendReminder(ctx context.Context, appt *appointments.Appointment) error
}

// Clock supplies the worker's "now". Injected for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Worker periodically sends appointment reminders. A reminder is marked sent
// only after the email goes out, so a failed send retries on the next tick.
type Worker struct {
	store    DueStore
	sender   Sender
	clock    Clock
	lead     time.Duration
	interval time.Duration
	logger   *logging.Logger
}

// WorkerConfig wires a Worker.
type WorkerConfig struct {
	Store    DueStore
	Sender   Sender
	Clock    Clock
	Lead     time.Duration
	Interval time.Duration
	Logger   *logging.Logger
}

// NewWorker validates cfg and builds a Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Store == nil {
		panic("reminders: store required")
	}
	if cfg.Sender == nil {
		panic("reminders: sender required")
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Worker{
		store:    cfg.Store,
		sender:   cfg.Sender,
		clock:    cfg.Clock,
		lead:     cfg.Lead,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
}

// Run processes due reminders on a fixed interval until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reminders worker started", "interval", w.interval, "lead", w.lead)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminders worker stopped")
			return
		case <-ticker.C:
			if err := w.ProcessDue(ctx); err != nil {
				w.logger.Error("reminder pass failed", "error", err)
			}
		}
	}
}

// ProcessDue sends every due reminder once. Individual send failures are
// logged and left unmarked for the next pass.
func (w *Worker) ProcessDue(ctx context.Context) error {
	now := w.clock.Now()
	due, err := w.store.ListDue(ctx, now, w.lead)
	if err != nil {
		return err
	}

	for i := range due {
		appt := &due[i]
		if err := w.sender.SendReminder(ctx, appt); err != nil {
			w.logger.Warn("reminder send failed, will retry", "appointment_id", appt.ID, "error", err)
			continue
		}
		if err := w.store.MarkSent(ctx, appt.ID, now); err != nil {
			w.logger.Warn("reminder mark failed", "appointment_id", appt.ID, "error", err)
		}
	}
	return nil
}
