package appointments

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs. Satisfied by
// pgxpool.Pool and by pgxmock in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments in Postgres.
type Store struct {
	pool PgxPool
}

// NewStore creates a ledger store backed by pgx.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Store{pool: pool}
}

const appointmentColumns = `id, clinic_id, professional_id, patient_id, scheduled_at, duration_minutes, status, notes, created_at, updated_at`

// CreateIfFree atomically inserts a pending appointment if no pending or
// confirmed appointment overlaps the requested range for the same
// (clinic, professional) key. Serialization is a transaction-scoped advisory
// lock on that key, so attempts for different keys never contend.
//
// Lock waits are bounded by the caller's context deadline; a deadline that
// fires before the commit point aborts the transaction with nothing written.
func (s *Store) CreateIfFree(ctx context.Context, appt Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	start, end := appt.Interval()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, resourceLockKey(appt.ClinicID, appt.ProfessionalID)); err != nil {
		return nil, fmt.Errorf("appointments: acquire booking lock: %w", err)
	}

	var conflict bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE clinic_id = $1
			  AND professional_id IS NOT DISTINCT FROM $2
			  AND status IN ('pending', 'confirmed')
			  AND scheduled_at < $4
			  AND scheduled_at + make_interval(mins => duration_minutes) > $3
		)
	`, appt.ClinicID, appt.ProfessionalID, start, end).Scan(&conflict)
	if err != nil {
		return nil, fmt.Errorf("appointments: overlap check: %w", err)
	}
	if conflict {
		return nil, ErrOverlap
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, clinic_id, professional_id, patient_id, scheduled_at, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, now(), now())
		RETURNING `+appointmentColumns,
		appt.ID, appt.ClinicID, appt.ProfessionalID, appt.PatientID, appt.ScheduledAt.UTC(), appt.DurationMinutes, appt.Notes)
	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit: %w", err)
	}
	return created, nil
}

// GetByID loads a single appointment.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load by id: %w", err)
	}
	return appt, nil
}

// UpdateStatus moves an appointment from one status to another. The WHERE
// clause on the current status makes concurrent transitions race-safe: only
// one writer observes the row in the expected state. ErrNotFound is returned
// when the row is missing or no longer in the expected status; the caller
// re-reads to decide whether the transition already happened.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, from, to)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: update status: %w", err)
	}
	return appt, nil
}

// ListOccupied returns the pending and confirmed appointments whose occupied
// interval intersects [from, to) for the given (clinic, professional) key.
// A nil professionalID matches only clinic-level rows, never "any professional".
func (s *Store) ListOccupied(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		  AND professional_id IS NOT DISTINCT FROM $2
		  AND status IN ('pending', 'confirmed')
		  AND scheduled_at < $4
		  AND scheduled_at + make_interval(mins => duration_minutes) > $3
		ORDER BY scheduled_at
	`, clinicID, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: list occupied: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan occupied: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list occupied: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(
		&a.ID, &a.ClinicID, &a.ProfessionalID, &a.PatientID,
		&a.ScheduledAt, &a.DurationMinutes, &a.Status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// resourceLockKey folds the (clinic, professional) pair into the signed
// 64-bit keyspace Postgres advisory locks use. A nil professional is its own
// key so clinic-level bookings serialize independently of every professional.
func resourceLockKey(clinicID uuid.UUID, professionalID *uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(clinicID[:])
	if professionalID != nil {
		_, _ = h.Write(professionalID[:])
	} else {
		_, _ = h.Write([]byte("clinic-level"))
	}
	return int64(h.Sum64())
}
