package workinghours

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pgx surface the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists windows and schedule blocks in Postgres.
type Store struct {
	pool PgxPool
}

// NewStore creates a working-hours store backed by pgx.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("workinghours: pgx pool required")
	}
	return &Store{pool: pool}
}

const windowColumns = `id, clinic_id, professional_id, weekday, start_time, end_time, slot_minutes, active`

// ListWindows returns the active windows for one (clinic, professional,
// weekday) key, ordered by start time. A nil professionalID selects the
// clinic-level schedule only.
func (s *Store) ListWindows(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, weekday time.Weekday) ([]Window, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM working_hours
		WHERE clinic_id = $1
		  AND professional_id IS NOT DISTINCT FROM $2
		  AND weekday = $3
		  AND active
		ORDER BY start_time
	`, clinicID, professionalID, int(weekday))
	if err != nil {
		return nil, fmt.Errorf("workinghours: list windows: %w", err)
	}
	return collectWindows(rows)
}

// ListAllWindows returns every window configured for a clinic, for the admin UI.
func (s *Store) ListAllWindows(ctx context.Context, clinicID uuid.UUID) ([]Window, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM working_hours
		WHERE clinic_id = $1
		ORDER BY professional_id NULLS FIRST, weekday, start_time
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("workinghours: list all windows: %w", err)
	}
	return collectWindows(rows)
}

// CreateWindow validates and inserts a window. Overlap with an existing
// active window on the same key is rejected here, at write time, inside the
// same transaction that inserts the row.
func (s *Store) CreateWindow(ctx context.Context, w Window) (*Window, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("workinghours: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+windowColumns+`
		FROM working_hours
		WHERE clinic_id = $1
		  AND professional_id IS NOT DISTINCT FROM $2
		  AND weekday = $3
		  AND active
		FOR UPDATE
	`, w.ClinicID, w.ProfessionalID, int(w.Weekday))
	if err != nil {
		return nil, fmt.Errorf("workinghours: lock weekday windows: %w", err)
	}
	existing, err := collectWindows(rows)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if w.Overlaps(&existing[i]) {
			return nil, ErrWindowOverlap
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO working_hours (id, clinic_id, professional_id, weekday, start_time, end_time, slot_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
	`, w.ID, w.ClinicID, w.ProfessionalID, int(w.Weekday), w.StartTime, w.EndTime, w.SlotMinutes); err != nil {
		return nil, fmt.Errorf("workinghours: insert window: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("workinghours: commit: %w", err)
	}
	w.Active = true
	return &w, nil
}

// DeactivateWindow soft-deletes a window; history stays queryable.
func (s *Store) DeactivateWindow(ctx context.Context, clinicID, windowID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE working_hours SET active = false
		WHERE id = $1 AND clinic_id = $2
	`, windowID, clinicID)
	if err != nil {
		return fmt.Errorf("workinghours: deactivate window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBlocks returns the schedule blocks intersecting [from, to) for the key.
func (s *Store) ListBlocks(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to time.Time) ([]Block, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, clinic_id, professional_id, starts_at, ends_at, reason
		FROM schedule_blocks
		WHERE clinic_id = $1
		  AND (professional_id IS NULL OR professional_id IS NOT DISTINCT FROM $2)
		  AND starts_at < $4
		  AND ends_at > $3
		ORDER BY starts_at
	`, clinicID, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("workinghours: list blocks: %w", err)
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.ClinicID, &b.ProfessionalID, &b.StartsAt, &b.EndsAt, &b.Reason); err != nil {
			return nil, fmt.Errorf("workinghours: scan block: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workinghours: list blocks: %w", err)
	}
	return out, nil
}

// CreateBlock inserts a schedule block.
func (s *Store) CreateBlock(ctx context.Context, b Block) (*Block, error) {
	if b.ClinicID == uuid.Nil {
		return nil, fmt.Errorf("%w: clinic_id required", ErrInvalidWindow)
	}
	if !b.StartsAt.Before(b.EndsAt) {
		return nil, fmt.Errorf("%w: block start must be before end", ErrInvalidWindow)
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO schedule_blocks (id, clinic_id, professional_id, starts_at, ends_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.ClinicID, b.ProfessionalID, b.StartsAt.UTC(), b.EndsAt.UTC(), b.Reason); err != nil {
		return nil, fmt.Errorf("workinghours: insert block: %w", err)
	}
	return &b, nil
}

// DeleteBlock removes a schedule block.
func (s *Store) DeleteBlock(ctx context.Context, clinicID, blockID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM schedule_blocks WHERE id = $1 AND clinic_id = $2`, blockID, clinicID)
	if err != nil {
		return fmt.Errorf("workinghours: delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectWindows(rows pgx.Rows) ([]Window, error) {
	defer rows.Close()
	var out []Window
	for rows.Next() {
		var w Window
		var weekday int
		if err := rows.Scan(&w.ID, &w.ClinicID, &w.ProfessionalID, &weekday, &w.StartTime, &w.EndTime, &w.SlotMinutes, &w.Active); err != nil {
			return nil, fmt.Errorf("workinghours: scan window: %w", err)
		}
		w.Weekday = time.Weekday(weekday)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workinghours: collect windows: %w", err)
	}
	return out, nil
}
