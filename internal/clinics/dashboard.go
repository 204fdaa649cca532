package clinics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/clinagenda/booking-platform/pkg/logging"
)

type dashboardDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DayStats aggregates one clinic day for the admin dashboard.
type DayStats struct {
	ClinicID      string           `json:"clinic_id"`
	Date          string           `json:"date"`
	ByStatus      map[string]int64 `json:"by_status"`
	Total         int64            `json:"total"`
	BookedMinutes int64            `json:"booked_minutes"`
}

// CommitLatencySnapshot is a point-in-time view of booking-commit latency
// read from the prometheus registry.
type CommitLatencySnapshot struct {
	Total   int64                 `json:"total"`
	P90Ms   float64               `json:"p90_ms"`
	P95Ms   float64               `json:"p95_ms"`
	Buckets []CommitLatencyBucket `json:"buckets"`
}

// CommitLatencyBucket is one cumulative histogram bucket.
type CommitLatencyBucket struct {
	LeSeconds float64 `json:"le_seconds"`
	Count     int64   `json:"count"`
}

// DashboardRepository queries day-level booking stats from the ledger tables.
type DashboardRepository struct {
	db dashboardDB
}

// NewDashboardRepository creates a repository over a pgx querier.
func NewDashboardRepository(db dashboardDB) *DashboardRepository {
	if db == nil {
		panic("clinics: pgx querier required for dashboard")
	}
	return &DashboardRepository{db: db}
}

// DayStats returns appointment counts by status plus occupied minutes for one
// local day [from, to).
func (r *DashboardRepository) DayStats(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (*DayStats, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("clinics dashboard: invalid time range")
	}
	rows, err := r.db.Query(ctx, `
		SELECT status,
		       COUNT(*) AS total,
		       COALESCE(SUM(duration_minutes) FILTER (WHERE status IN ('pending', 'confirmed')), 0) AS booked_minutes
		FROM appointments
		WHERE clinic_id = $1
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
		GROUP BY status
	`, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("clinics dashboard: query day stats: %w", err)
	}
	defer rows.Close()

	stats := &DayStats{
		ClinicID: clinicID.String(),
		Date:     from.Format("2006-01-02"),
		ByStatus: map[string]int64{},
	}
	for rows.Next() {
		var status string
		var total, bookedMinutes int64
		if err := rows.Scan(&status, &total, &bookedMinutes); err != nil {
			return nil, fmt.Errorf("clinics dashboard: scan day stats: %w", err)
		}
		stats.ByStatus[status] = total
		stats.Total += total
		stats.BookedMinutes += bookedMinutes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinics dashboard: day stats: %w", err)
	}
	return stats, nil
}

// CommitLatencyFromRegistry extracts the booking commit latency histogram
// from a prometheus gatherer, so the dashboard can render it without a
// separate metrics scrape.
func CommitLatencyFromRegistry(g prometheus.Gatherer, metricName string) (*CommitLatencySnapshot, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("clinics dashboard: gather metrics: %w", err)
	}
	for _, mf := range families {
		if mf.GetName() != metricName || mf.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		snapshot := &CommitLatencySnapshot{}
		for _, m := range mf.GetMetric() {
			h := m.GetHistogram()
			snapshot.Total += int64(h.GetSampleCount())
			for _, b := range h.GetBucket() {
				snapshot.Buckets = append(snapshot.Buckets, CommitLatencyBucket{
					LeSeconds: b.GetUpperBound(),
					Count:     int64(b.GetCumulativeCount()),
				})
			}
		}
		snapshot.P90Ms = percentileFromBuckets(snapshot, 0.90)
		snapshot.P95Ms = percentileFromBuckets(snapshot, 0.95)
		return snapshot, nil
	}
	return &CommitLatencySnapshot{}, nil
}

func percentileFromBuckets(s *CommitLatencySnapshot, q float64) float64 {
	if s.Total == 0 {
		return 0
	}
	target := int64(math.Ceil(float64(s.Total) * q))
	if target < 1 {
		target = 1
	}
	for _, b := range s.Buckets {
		if b.Count >= target {
			return b.LeSeconds * 1000
		}
	}
	return 0
}

// DashboardHandler serves the admin dashboard endpoint.
type DashboardHandler struct {
	repo     *DashboardRepository
	settings *Store
	gatherer prometheus.Gatherer
	// latencyMetric is the fully qualified histogram name to snapshot.
	latencyMetric string
	logger        *logging.Logger
}

// NewDashboardHandler creates the dashboard HTTP handler.
func NewDashboardHandler(repo *DashboardRepository, settings *Store, gatherer prometheus.Gatherer, latencyMetric string, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardHandler{
		repo:          repo,
		settings:      settings,
		gatherer:      gatherer,
		latencyMetric: latencyMetric,
		logger:        logger,
	}
}

// Dashboard renders one clinic day.
// GET /admin/clinics/{clinicID}/dashboard?date=YYYY-MM-DD
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}

	settings, err := h.settings.Get(r.Context(), clinicID.String())
	if err != nil {
		h.logger.Error("dashboard: load settings", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	loc := settings.Location()

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().In(loc).Format("2006-01-02")
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		http.Error(w, `{"error": "invalid date, expected YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	stats, err := h.repo.DayStats(r.Context(), clinicID, day, day.AddDate(0, 0, 1))
	if err != nil {
		h.logger.Error("dashboard: day stats", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	payload := map[string]any{"day": stats}
	if h.gatherer != nil {
		if latency, err := CommitLatencyFromRegistry(h.gatherer, h.latencyMetric); err == nil {
			payload["commit_latency"] = latency
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("dashboard: encode response", "clinic_id", clinicID, "error", err)
	}
}
