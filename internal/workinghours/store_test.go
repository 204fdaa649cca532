package workinghours

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func windowRowDefs() []string {
	return []string{"id", "clinic_id", "professional_id", "weekday", "start_time", "end_time", "slot_minutes", "active"}
}

func TestListWindowsScansRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	clinicID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM working_hours").
		WithArgs(clinicID, (*uuid.UUID)(nil), int(time.Monday)).
		WillReturnRows(pgxmock.NewRows(windowRowDefs()).
			AddRow(uuid.New(), clinicID, (*uuid.UUID)(nil), 1, "08:00", "12:00", 30, true).
			AddRow(uuid.New(), clinicID, (*uuid.UUID)(nil), 1, "14:00", "18:00", 30, true))

	windows, err := store.ListWindows(context.Background(), clinicID, nil, time.Monday)
	if err != nil {
		t.Fatalf("ListWindows: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[0].Weekday != time.Monday || windows[0].StartTime != "08:00" {
		t.Fatalf("unexpected first window: %+v", windows[0])
	}
}

func TestCreateWindowRejectsOverlapAtWriteTime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	clinicID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM working_hours").
		WithArgs(clinicID, (*uuid.UUID)(nil), int(time.Monday)).
		WillReturnRows(pgxmock.NewRows(windowRowDefs()).
			AddRow(uuid.New(), clinicID, (*uuid.UUID)(nil), 1, "08:00", "12:00", 30, true))
	mock.ExpectRollback()

	_, err = store.CreateWindow(context.Background(), Window{
		ClinicID:    clinicID,
		Weekday:     time.Monday,
		StartTime:   "11:00",
		EndTime:     "15:00",
		SlotMinutes: 30,
	})
	if !errors.Is(err, ErrWindowOverlap) {
		t.Fatalf("expected ErrWindowOverlap, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateWindowInsertsWhenClear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	clinicID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM working_hours").
		WithArgs(clinicID, (*uuid.UUID)(nil), int(time.Monday)).
		WillReturnRows(pgxmock.NewRows(windowRowDefs()).
			AddRow(uuid.New(), clinicID, (*uuid.UUID)(nil), 1, "08:00", "12:00", 30, true))
	mock.ExpectExec("INSERT INTO working_hours").
		WithArgs(pgxmock.AnyArg(), clinicID, (*uuid.UUID)(nil), int(time.Monday), "14:00", "18:00", 30).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	created, err := store.CreateWindow(context.Background(), Window{
		ClinicID:    clinicID,
		Weekday:     time.Monday,
		StartTime:   "14:00",
		EndTime:     "18:00",
		SlotMinutes: 30,
	})
	if err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}
	if !created.Active {
		t.Fatal("created window should be active")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateWindowValidatesBeforeTouchingDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	_, err = store.CreateWindow(context.Background(), Window{
		ClinicID:    uuid.New(),
		Weekday:     time.Monday,
		StartTime:   "18:00",
		EndTime:     "08:00",
		SlotMinutes: 30,
	})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("db should not be touched: %v", err)
	}
}

func TestDeactivateWindowNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	clinicID, windowID := uuid.New(), uuid.New()

	mock.ExpectExec("UPDATE working_hours SET active = false").
		WithArgs(windowID, clinicID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.DeactivateWindow(context.Background(), clinicID, windowID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListBlocks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := &Store{pool: mock}
	clinicID := uuid.New()
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM schedule_blocks").
		WithArgs(clinicID, (*uuid.UUID)(nil), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"id", "clinic_id", "professional_id", "starts_at", "ends_at", "reason"}).
			AddRow(uuid.New(), clinicID, (*uuid.UUID)(nil), from.Add(12*time.Hour), from.Add(14*time.Hour), "staff meeting"))

	blocks, err := store.ListBlocks(context.Background(), clinicID, nil, from, to)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Reason != "staff meeting" {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
}
