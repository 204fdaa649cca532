// Package clinics provides per-clinic settings and operational views.
package clinics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotificationPrefs controls which patient emails a clinic sends.
type NotificationPrefs struct {
	EmailEnabled         bool `json:"email_enabled"`
	NotifyOnBooking      bool `json:"notify_on_booking"`
	NotifyOnCancel       bool `json:"notify_on_cancel"`
	AppointmentReminders bool `json:"appointment_reminders"`
}

// Settings holds clinic-level scheduling configuration.
type Settings struct {
	ClinicID string `json:"clinic_id"`
	Name     string `json:"name"`
	// Timezone is the IANA zone all the clinic's clock times are local to,
	// e.g. "America/Sao_Paulo".
	Timezone string `json:"timezone"`
	// SlotMinutes is the default availability granularity when a window
	// does not carry its own.
	SlotMinutes int `json:"slot_minutes"`
	// ReminderLeadHours is how long before a confirmed appointment the
	// reminder email goes out.
	ReminderLeadHours int               `json:"reminder_lead_hours"`
	Notifications     NotificationPrefs `json:"notifications"`
}

// DefaultSettings returns the settings a clinic starts with.
func DefaultSettings(clinicID string) *Settings {
	return &Settings{
		ClinicID:          clinicID,
		Name:              "Clinic",
		Timezone:          "America/Sao_Paulo",
		SlotMinutes:       30,
		ReminderLeadHours: 24,
		Notifications: NotificationPrefs{
			EmailEnabled:         false,
			NotifyOnBooking:      true,
			NotifyOnCancel:       true,
			AppointmentReminders: true,
		},
	}
}

// Location resolves the clinic's timezone, falling back to UTC on bad data.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Store keeps clinic settings in redis. Settings are tiny, read on every
// availability request, and edited rarely, so redis is the system of record
// for them (profile data proper lives with the external account service).
type Store struct {
	client *redis.Client
	// slotMinutes is the deployment-wide default granularity applied to
	// clinics that have never stored settings.
	slotMinutes int
}

// NewStore creates a redis-backed settings store. defaultSlotMinutes is the
// granularity new clinics start with; values <= 0 fall back to 30.
func NewStore(client *redis.Client, defaultSlotMinutes int) *Store {
	if defaultSlotMinutes <= 0 {
		defaultSlotMinutes = 30
	}
	return &Store{client: client, slotMinutes: defaultSlotMinutes}
}

func (s *Store) defaults(clinicID string) *Settings {
	settings := DefaultSettings(clinicID)
	settings.SlotMinutes = s.slotMinutes
	return settings
}

func settingsKey(clinicID string) string {
	return "clinic:settings:" + clinicID
}

// Get loads settings for a clinic, returning defaults when none are stored.
func (s *Store) Get(ctx context.Context, clinicID string) (*Settings, error) {
	if s.client == nil {
		return s.defaults(clinicID), nil
	}
	raw, err := s.client.Get(ctx, settingsKey(clinicID)).Bytes()
	if err == redis.Nil {
		return s.defaults(clinicID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinics: load settings: %w", err)
	}
	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("clinics: decode settings: %w", err)
	}
	if settings.SlotMinutes <= 0 {
		settings.SlotMinutes = s.slotMinutes
	}
	return &settings, nil
}

// Set persists settings for a clinic.
func (s *Store) Set(ctx context.Context, settings *Settings) error {
	if s.client == nil {
		return fmt.Errorf("clinics: redis client not configured")
	}
	if settings.ClinicID == "" {
		return fmt.Errorf("clinics: clinic_id required")
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("clinics: encode settings: %w", err)
	}
	if err := s.client.Set(ctx, settingsKey(settings.ClinicID), raw, 0).Err(); err != nil {
		return fmt.Errorf("clinics: save settings: %w", err)
	}
	return nil
}
