package clinics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
)

func TestDayStatsAggregates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewDashboardRepository(mock)
	clinicID := uuid.New()
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT status").
		WithArgs(clinicID, from, from.AddDate(0, 0, 1)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "total", "booked_minutes"}).
			AddRow("confirmed", int64(4), int64(120)).
			AddRow("pending", int64(2), int64(60)).
			AddRow("canceled", int64(1), int64(0)))

	stats, err := repo.DayStats(context.Background(), clinicID, from, from.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("DayStats: %v", err)
	}
	if stats.Total != 7 {
		t.Errorf("expected total 7, got %d", stats.Total)
	}
	if stats.ByStatus["confirmed"] != 4 {
		t.Errorf("expected 4 confirmed, got %d", stats.ByStatus["confirmed"])
	}
	if stats.BookedMinutes != 180 {
		t.Errorf("expected 180 booked minutes, got %d", stats.BookedMinutes)
	}
}

func TestDayStatsRejectsInvalidRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewDashboardRepository(mock)
	day := time.Now()
	if _, err := repo.DayStats(context.Background(), uuid.New(), day, day); err == nil {
		t.Fatal("expected error for empty range")
	}
}

func TestCommitLatencyFromRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clinagenda",
		Subsystem: "booking",
		Name:      "commit_latency_seconds",
		Buckets:   []float64{0.01, 0.1, 1},
	})
	reg.MustRegister(hist)
	hist.Observe(0.005)
	hist.Observe(0.05)
	hist.Observe(0.5)

	snapshot, err := CommitLatencyFromRegistry(reg, "clinagenda_booking_commit_latency_seconds")
	if err != nil {
		t.Fatalf("CommitLatencyFromRegistry: %v", err)
	}
	if snapshot.Total != 3 {
		t.Fatalf("expected 3 samples, got %d", snapshot.Total)
	}
	if len(snapshot.Buckets) == 0 {
		t.Fatal("expected histogram buckets")
	}
}

func TestCommitLatencyPercentileSingleSample(t *testing.T) {
	reg := prometheus.NewRegistry()
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clinagenda",
		Subsystem: "booking",
		Name:      "commit_latency_seconds",
		Buckets:   []float64{0.01, 0.1, 1},
	})
	reg.MustRegister(hist)
	hist.Observe(0.5)

	snapshot, err := CommitLatencyFromRegistry(reg, "clinagenda_booking_commit_latency_seconds")
	if err != nil {
		t.Fatalf("CommitLatencyFromRegistry: %v", err)
	}
	// With one sample in the le=1 bucket, every percentile must land there,
	// not in the first (empty) bucket.
	if snapshot.P90Ms != 1000 {
		t.Errorf("expected P90 1000ms, got %g", snapshot.P90Ms)
	}
	if snapshot.P95Ms != 1000 {
		t.Errorf("expected P95 1000ms, got %g", snapshot.P95Ms)
	}
}

func TestCommitLatencyFromRegistryMissingMetric(t *testing.T) {
	snapshot, err := CommitLatencyFromRegistry(prometheus.NewRegistry(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Total != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}
}
