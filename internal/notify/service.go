package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinagenda/booking-platform/internal/appointments"
	"github.com/clinagenda/booking-platform/internal/clinics"
	"github.com/clinagenda/booking-platform/pkg/logging"
)

// Patient is the contact slice of a patient record the mailer needs.
type Patient struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// PatientDirectory resolves patient contact details.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// SettingsReader resolves per-clinic settings (timezone, notification
// preferences). Implemented by clinics.Store.
type SettingsReader interface {
	Get(ctx context.Context, clinicID string) (*clinics.Settings, error)
}

// Service sends appointment emails to patients. It satisfies the booking
// core's notifier contract: methods log failures instead of returning them,
// so a dead mail provider never blocks a booking.
type Service struct {
	email    EmailSender
	patients PatientDirectory
	settings SettingsReader
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, patients PatientDirectory, settings SettingsReader, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:    email,
		patients: patients,
		settings: settings,
		logger:   logger,
	}
}

// AppointmentBooked emails the patient a booking confirmation.
func (s *Service) AppointmentBooked(ctx context.Context, appt *appointments.Appointment) {
	s.send(ctx, appt, "booked")
}

// AppointmentCanceled emails the patient a cancellation notice.
func (s *Service) AppointmentCanceled(ctx context.Context, appt *appointments.Appointment) {
	s.send(ctx, appt, "canceled")
}

// SendReminder emails the patient an upcoming-appointment reminder. Unlike
// the lifecycle notifications it returns its error, so the reminders worker
// can decide whether to mark the reminder as sent.
func (s *Service) SendReminder(ctx context.Context, appt *appointments.Appointment) error {
	settings, patient, err := s.resolve(ctx, appt)
	if err != nil {
		return err
	}
	if !settings.Notifications.EmailEnabled || !settings.Notifications.AppointmentReminders {
		return nil
	}

	when := appt.ScheduledAt.In(settings.Location())
	msg := EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: fmt.Sprintf("Reminder: your appointment at %s", settings.Name),
		Body: fmt.Sprintf("Hi %s,\n\nThis is a reminder of your appointment at %s on %s at %s.\n\nIf you cannot attend, please cancel or reschedule.",
			patient.Name, settings.Name, when.Format("Monday, January 2"), when.Format("15:04")),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send reminder: %w", err)
	}
	return nil
}

func (s *Service) send(ctx context.Context, appt *appointments.Appointment, event string) {
	settings, patient, err := s.resolve(ctx, appt)
	if err != nil {
		s.logger.Warn("notification skipped", "appointment_id", appt.ID, "event", event, "error", err)
		return
	}
	if !settings.Notifications.EmailEnabled {
		return
	}
	if event == "booked" && !settings.Notifications.NotifyOnBooking {
		return
	}
	if event == "canceled" && !settings.Notifications.NotifyOnCancel {
		return
	}

	when := appt.ScheduledAt.In(settings.Location())
	var msg EmailMessage
	switch event {
	case "booked":
		msg = EmailMessage{
			To:      patient.Email,
			ToName:  patient.Name,
			Subject: fmt.Sprintf("Appointment confirmed at %s", settings.Name),
			Body: fmt.Sprintf("Hi %s,\n\nYour appointment at %s is booked for %s at %s (%d minutes).",
				patient.Name, settings.Name, when.Format("Monday, January 2"), when.Format("15:04"), appt.DurationMinutes),
		}
	case "canceled":
		msg = EmailMessage{
			To:      patient.Email,
			ToName:  patient.Name,
			Subject: fmt.Sprintf("Appointment canceled at %s", settings.Name),
			Body: fmt.Sprintf("Hi %s,\n\nYour appointment at %s on %s at %s has been canceled.",
				patient.Name, settings.Name, when.Format("Monday, January 2"), when.Format("15:04")),
		}
	default:
		return
	}

	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Warn("notification send failed", "appointment_id", appt.ID, "event", event, "error", err)
	}
}

func (s *Service) resolve(ctx context.Context, appt *appointments.Appointment) (*clinics.Settings, *Patient, error) {
	if s.email == nil {
		return nil, nil, fmt.Errorf("notify: email sender not configured")
	}
	if s.patients == nil {
		return nil, nil, fmt.Errorf("notify: patient directory not configured")
	}

	settings := clinics.DefaultSettings(appt.ClinicID.String())
	if s.settings != nil {
		loaded, err := s.settings.Get(ctx, appt.ClinicID.String())
		if err != nil {
			s.logger.Warn("clinic settings unavailable, using defaults", "clinic_id", appt.ClinicID, "error", err)
		} else {
			settings = loaded
		}
	}

	patient, err := s.patients.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("notify: load patient %s: %w", appt.PatientID, err)
	}
	if patient.Email == "" {
		return nil, nil, fmt.Errorf("notify: patient %s has no email", appt.PatientID)
	}
	return settings, patient, nil
}
