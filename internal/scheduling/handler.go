package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinagenda/booking-platform/internal/appointments"
	"github.com/clinagenda/booking-platform/internal/clinics"
	"github.com/clinagenda/booking-platform/pkg/logging"
)

// SettingsReader resolves per-clinic settings (timezone, default slot
// length). Implemented by clinics.Store.
type SettingsReader interface {
	Get(ctx context.Context, clinicID string) (*clinics.Settings, error)
}

// Handler exposes the patient-facing booking endpoints.
type Handler struct {
	service  *Service
	settings SettingsReader
	logger   *logging.Logger
}

// NewHandler creates the booking HTTP handler.
func NewHandler(service *Service, settings SettingsReader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, settings: settings, logger: logger}
}

// ClinicRoutes returns the routes mounted under /clinics/{clinicID}.
func (h *Handler) ClinicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/availability", h.Availability)
	r.Post("/appointments", h.Book)
	return r
}

// AppointmentRoutes returns the routes mounted under /appointments.
func (h *Handler) AppointmentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{appointmentID}", h.GetAppointment)
	r.Post("/{appointmentID}/transitions", h.Transition)
	return r
}

func (h *Handler) clinicSettings(ctx context.Context, clinicID uuid.UUID) *clinics.Settings {
	settings, err := h.settings.Get(ctx, clinicID.String())
	if err != nil {
		h.logger.Warn("clinic settings unavailable, using defaults", "clinic_id", clinicID, "error", err)
		return clinics.DefaultSettings(clinicID.String())
	}
	return settings
}

// Availability lists the slots for one clinic day.
// GET /clinics/{clinicID}/availability?date=2026-03-02&professional_id=...&granularity=15
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}

	settings := h.clinicSettings(r.Context(), clinicID)
	loc := settings.Location()

	date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), loc)
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	q := AvailabilityQuery{
		ClinicID:           clinicID,
		Date:               date,
		GranularityMinutes: settings.SlotMinutes,
	}
	if raw := r.URL.Query().Get("professional_id"); raw != "" {
		profID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, `{"error": "invalid professional id"}`, http.StatusBadRequest)
			return
		}
		q.ProfessionalID = &profID
	}
	if raw := r.URL.Query().Get("granularity"); raw != "" {
		gran, err := strconv.Atoi(raw)
		if err != nil || gran <= 0 {
			http.Error(w, `{"error": "granularity must be a positive number of minutes"}`, http.StatusBadRequest)
			return
		}
		q.GranularityMinutes = gran
	}

	slots, err := h.service.Availability(r.Context(), q)
	if err != nil {
		h.logger.Error("availability query failed", "clinic_id", clinicID, "date", q.Date, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format("2006-01-02"),
		"slots": slots,
	})
}

// BookRequest is the request body for claiming a slot.
type BookRequest struct {
	ProfessionalID  *uuid.UUID `json:"professional_id,omitempty"`
	PatientID       uuid.UUID  `json:"patient_id"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// Book commits an appointment into a free slot.
// POST /clinics/{clinicID}/appointments
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil {
		http.Error(w, `{"error": "patient_id required"}`, http.StatusBadRequest)
		return
	}
	if req.ScheduledAt.IsZero() {
		http.Error(w, `{"error": "scheduled_at required"}`, http.StatusBadRequest)
		return
	}

	settings := h.clinicSettings(r.Context(), clinicID)
	appt, err := h.service.Book(r.Context(), BookingRequest{
		ClinicID:        clinicID,
		ProfessionalID:  req.ProfessionalID,
		PatientID:       req.PatientID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Location:        settings.Location(),
	})
	switch {
	case errors.Is(err, ErrSlotTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "slot already taken"})
		return
	case errors.Is(err, ErrPastTime):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "requested time is in the past"})
		return
	case errors.Is(err, ErrInvalidWindow):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "requested time outside working hours"})
		return
	case errors.Is(err, ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "timed out waiting for the slot, retry"})
		return
	case err != nil:
		h.logger.Error("booking failed", "clinic_id", clinicID, "scheduled_at", req.ScheduledAt, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// GetAppointment loads one appointment.
// GET /appointments/{appointmentID}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}
	appt, err := h.service.ledger.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, appointments.ErrNotFound):
		http.Error(w, `{"error": "appointment not found"}`, http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("failed to load appointment", "appointment_id", id, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// TransitionRequest is the request body for a lifecycle action.
type TransitionRequest struct {
	Action Action `json:"action"`
}

// Transition applies a lifecycle action.
// POST /appointments/{appointmentID}/transitions
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if !req.Action.Valid() {
		http.Error(w, `{"error": "unknown action"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.service.Transition(r.Context(), id, req.Action)
	var terr *TransitionError
	switch {
	case errors.As(err, &terr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": terr.Error()})
		return
	case errors.Is(err, appointments.ErrNotFound):
		http.Error(w, `{"error": "appointment not found"}`, http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("transition failed", "appointment_id", id, "action", req.Action, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
