package clinics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinagenda/booking-platform/pkg/logging"
)

// Handler provides HTTP endpoints for clinic settings management.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a clinic settings HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns a chi router with clinic admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
	return r
}

// GetSettings returns the settings for a clinic.
// GET /admin/clinics/{clinicID}/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to get clinic settings", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode clinic settings", "clinic_id", clinicID, "error", err)
	}
}

// UpdateSettingsRequest is the request body for updating clinic settings.
// All fields are optional; absent fields keep their current values.
type UpdateSettingsRequest struct {
	Name              string             `json:"name,omitempty"`
	Timezone          string             `json:"timezone,omitempty"`
	SlotMinutes       *int               `json:"slot_minutes,omitempty"`
	ReminderLeadHours *int               `json:"reminder_lead_hours,omitempty"`
	Notifications     *NotificationPrefs `json:"notifications,omitempty"`
}

// UpdateSettings applies a partial settings update.
// PUT /admin/clinics/{clinicID}/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to get clinic settings", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	if req.Name != "" {
		settings.Name = req.Name
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			http.Error(w, `{"error": "unknown timezone"}`, http.StatusUnprocessableEntity)
			return
		}
		settings.Timezone = req.Timezone
	}
	if req.SlotMinutes != nil {
		if *req.SlotMinutes <= 0 {
			http.Error(w, `{"error": "slot_minutes must be positive"}`, http.StatusUnprocessableEntity)
			return
		}
		settings.SlotMinutes = *req.SlotMinutes
	}
	if req.ReminderLeadHours != nil {
		settings.ReminderLeadHours = *req.ReminderLeadHours
	}
	if req.Notifications != nil {
		settings.Notifications = *req.Notifications
	}

	if err := h.store.Set(r.Context(), settings); err != nil {
		h.logger.Error("failed to save clinic settings", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "failed to save settings"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("clinic settings updated", "clinic_id", clinicID, "name", settings.Name)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode clinic settings", "clinic_id", clinicID, "error", err)
	}
}
