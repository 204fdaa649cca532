package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is an in-memory ledger with the same semantics as Store.
// It backs local development and the concurrency tests: creation serializes
// per (clinic, professional) key exactly like the advisory lock does.
type MemoryLedger struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*Appointment
	locks map[int64]*sync.Mutex
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		rows:  make(map[uuid.UUID]*Appointment),
		locks: make(map[int64]*sync.Mutex),
	}
}

func (m *MemoryLedger) keyLock(clinicID uuid.UUID, professionalID *uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := resourceLockKey(clinicID, professionalID)
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// CreateIfFree inserts a pending appointment unless an occupying row overlaps.
func (m *MemoryLedger) CreateIfFree(ctx context.Context, appt Appointment) (*Appointment, error) {
	lock := m.keyLock(appt.ClinicID, appt.ProfessionalID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start, end := appt.Interval()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.ClinicID != appt.ClinicID || !sameProfessional(existing.ProfessionalID, appt.ProfessionalID) {
			continue
		}
		if !existing.Status.Occupies() {
			continue
		}
		es, ee := existing.Interval()
		if start.Before(ee) && es.Before(end) {
			return nil, ErrOverlap
		}
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now().UTC()
	appt.Status = StatusPending
	appt.CreatedAt = now
	appt.UpdatedAt = now
	stored := appt
	m.rows[appt.ID] = &stored

	created := stored
	return &created, nil
}

// GetByID loads a single appointment.
func (m *MemoryLedger) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *row
	return &out, nil
}

// UpdateStatus applies a compare-and-swap status change.
func (m *MemoryLedger) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != from {
		return nil, ErrNotFound
	}
	row.Status = to
	row.UpdatedAt = time.Now().UTC()
	out := *row
	return &out, nil
}

// ListOccupied returns occupying rows intersecting [from, to) for the key.
func (m *MemoryLedger) ListOccupied(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, row := range m.rows {
		if row.ClinicID != clinicID || !sameProfessional(row.ProfessionalID, professionalID) {
			continue
		}
		if !row.Status.Occupies() {
			continue
		}
		s, e := row.Interval()
		if s.Before(to) && from.Before(e) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func sameProfessional(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
