package workinghours

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinagenda/booking-platform/pkg/logging"
)

// Schedule is the store surface the handler and the scheduler consume.
type Schedule interface {
	ListWindows(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, weekday time.Weekday) ([]Window, error)
	ListAllWindows(ctx context.Context, clinicID uuid.UUID) ([]Window, error)
	CreateWindow(ctx context.Context, w Window) (*Window, error)
	DeactivateWindow(ctx context.Context, clinicID, windowID uuid.UUID) error
	ListBlocks(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to time.Time) ([]Block, error)
	CreateBlock(ctx context.Context, b Block) (*Block, error)
	DeleteBlock(ctx context.Context, clinicID, blockID uuid.UUID) error
}

// Handler exposes the admin CRUD endpoints for windows and blocks.
type Handler struct {
	schedule Schedule
	logger   *logging.Logger
}

// NewHandler creates a working-hours admin handler.
func NewHandler(schedule Schedule, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{schedule: schedule, logger: logger}
}

// Routes returns the chi router mounted under /admin/clinics/{clinicID}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/working-hours", h.ListWindows)
	r.Post("/working-hours", h.CreateWindow)
	r.Delete("/working-hours/{windowID}", h.DeactivateWindow)
	r.Post("/schedule-blocks", h.CreateBlock)
	r.Delete("/schedule-blocks/{blockID}", h.DeleteBlock)
	return r
}

// ListWindows returns every window configured for the clinic.
// GET /admin/clinics/{clinicID}/working-hours
func (h *Handler) ListWindows(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}
	windows, err := h.schedule.ListAllWindows(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to list working hours", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": windows})
}

// CreateWindowRequest is the request body for adding a window.
type CreateWindowRequest struct {
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	Weekday        int        `json:"weekday"`
	StartTime      string     `json:"start_time"`
	EndTime        string     `json:"end_time"`
	SlotMinutes    int        `json:"slot_minutes"`
}

// CreateWindow adds a working-hours window.
// POST /admin/clinics/{clinicID}/working-hours
func (h *Handler) CreateWindow(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}
	var req CreateWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.SlotMinutes == 0 {
		req.SlotMinutes = 30
	}

	window, err := h.schedule.CreateWindow(r.Context(), Window{
		ClinicID:       clinicID,
		ProfessionalID: req.ProfessionalID,
		Weekday:        time.Weekday(req.Weekday),
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		SlotMinutes:    req.SlotMinutes,
	})
	switch {
	case errors.Is(err, ErrWindowOverlap):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "window overlaps an existing window"})
		return
	case errors.Is(err, ErrInvalidWindow):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("failed to create window", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("working-hours window created",
		"clinic_id", clinicID, "weekday", window.Weekday, "start", window.StartTime, "end", window.EndTime)
	writeJSON(w, http.StatusCreated, window)
}

// DeactivateWindow soft-deletes a window.
// DELETE /admin/clinics/{clinicID}/working-hours/{windowID}
func (h *Handler) DeactivateWindow(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}
	windowID, err := uuid.Parse(chi.URLParam(r, "windowID"))
	if err != nil {
		http.Error(w, `{"error": "invalid window id"}`, http.StatusBadRequest)
		return
	}
	switch err := h.schedule.DeactivateWindow(r.Context(), clinicID, windowID); {
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error": "window not found"}`, http.StatusNotFound)
	case err != nil:
		h.logger.Error("failed to deactivate window", "window_id", windowID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// CreateBlockRequest is the request body for adding a schedule block.
type CreateBlockRequest struct {
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	Reason         string     `json:"reason,omitempty"`
}

// CreateBlock adds a closed interval.
// POST /admin/clinics/{clinicID}/schedule-blocks
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}
	var req CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	block, err := h.schedule.CreateBlock(r.Context(), Block{
		ClinicID:       clinicID,
		ProfessionalID: req.ProfessionalID,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Reason:         req.Reason,
	})
	switch {
	case errors.Is(err, ErrInvalidWindow):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("failed to create block", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// DeleteBlock removes a closed interval.
// DELETE /admin/clinics/{clinicID}/schedule-blocks/{blockID}
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}
	blockID, err := uuid.Parse(chi.URLParam(r, "blockID"))
	if err != nil {
		http.Error(w, `{"error": "invalid block id"}`, http.StatusBadRequest)
		return
	}
	switch err := h.schedule.DeleteBlock(r.Context(), clinicID, blockID); {
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error": "block not found"}`, http.StatusNotFound)
	case err != nil:
		h.logger.Error("failed to delete block", "block_id", blockID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
