// Package reminders drives the appointment reminder loop: find confirmed
// appointments entering the reminder lead window, email the patient once,
// and record the send so restarts never double-remind.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinagenda/booking-platform/internal/appointments"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads and marks due reminders.
type Store struct {
	pool pgxPool
}

// NewStore creates a reminder store backed by pgx.
func NewStore(pool pgxPool) *Store {
	if pool == nil {
		panic("reminders: pgx pool required")
	}
	return &Store{pool: pool}
}

// ListDue returns confirmed appointments starting within the lead window
// that have not been reminded yet. Appointments already underway are
// excluded; a reminder for a visit that started is noise.
func (s *Store) ListDue(ctx context.Context, now time.Time, lead time.Duration) ([]appointments.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, clinic_id, professional_id, patient_id, scheduled_at, duration_minutes, status, notes, created_at, updated_at
		FROM appointments
		WHERE status = 'confirmed'
		  AND reminder_sent_at IS NULL
		  AND scheduled_at > $1
		  AND scheduled_at <= $2
		ORDER BY scheduled_at
	`, now, now.Add(lead))
	if err != nil {
		return nil, fmt.Errorf("reminders: list due: %w", err)
	}
	defer rows.Close()

	var out []appointments.Appointment
	for rows.Next() {
		var a appointments.Appointment
		if err := rows.Scan(
			&a.ID, &a.ClinicID, &a.ProfessionalID, &a.PatientID,
			&a.ScheduledAt, &a.DurationMinutes, &a.Status, &a.Notes,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("reminders: scan due: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminders: list due: %w", err)
	}
	return out, nil
}

// MarkSent records the reminder send time for one appointment.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET reminder_sent_at = $2 WHERE id = $1 AND reminder_sent_at IS NULL`,
		id, at)
	if err != nil {
		return fmt.Errorf("reminders: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return appointments.ErrNotFound
	}
	return nil
}
