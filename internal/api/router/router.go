// Package router assembles the HTTP surface: public booking endpoints,
// JWT-protected clinic admin endpoints, health and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinagenda/booking-platform/internal/clinics"
	httpmiddleware "github.com/clinagenda/booking-platform/internal/http/middleware"
	"github.com/clinagenda/booking-platform/internal/scheduling"
	"github.com/clinagenda/booking-platform/internal/workinghours"
	"github.com/clinagenda/booking-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	BookingHandler      *scheduling.Handler
	WorkingHoursHandler *workinghours.Handler
	SettingsHandler     *clinics.Handler
	DashboardHandler    *clinics.DashboardHandler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string
	// BookingRate limits booking commits per IP; zero disables the limiter.
	BookingRate  float64
	BookingBurst int
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics, patient booking.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.BookingHandler != nil {
			if cfg.BookingRate > 0 {
				public.With(httpmiddleware.RateLimit(cfg.BookingRate, cfg.BookingBurst)).
					Mount("/clinics/{clinicID}", cfg.BookingHandler.ClinicRoutes())
			} else {
				public.Mount("/clinics/{clinicID}", cfg.BookingHandler.ClinicRoutes())
			}
			public.Mount("/appointments", cfg.BookingHandler.AppointmentRoutes())
		}
	})

	// Clinic admin endpoints behind JWT.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		admin.Route("/clinics/{clinicID}", func(clinic chi.Router) {
			if cfg.WorkingHoursHandler != nil {
				clinic.Mount("/", cfg.WorkingHoursHandler.Routes())
			}
			if cfg.SettingsHandler != nil {
				clinic.Get("/settings", cfg.SettingsHandler.GetSettings)
				clinic.Put("/settings", cfg.SettingsHandler.UpdateSettings)
			}
			if cfg.DashboardHandler != nil {
				clinic.Get("/dashboard", cfg.DashboardHandler.Dashboard)
			}
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
