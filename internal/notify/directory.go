package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrPatientNotFound means no patient row matches the given id.
var ErrPatientNotFound = errors.New("notify: patient not found")

// PgxDirectory resolves patients from the patients table.
type PgxDirectory struct {
	pool pgxQuerier
}

// NewPgxDirectory creates a patient directory backed by pgx.
func NewPgxDirectory(pool pgxQuerier) *PgxDirectory {
	if pool == nil {
		panic("notify: pgx pool required")
	}
	return &PgxDirectory{pool: pool}
}

// GetPatient loads one patient's contact details.
func (d *PgxDirectory) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, email FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("notify: load patient: %w", err)
	}
	return &p, nil
}

var _ PatientDirectory = (*PgxDirectory)(nil)
