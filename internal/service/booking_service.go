package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookflow/internal/api"
	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/logging"
	"bookflow/internal/metrics"
	"bookflow/internal/models"
	"bookflow/internal/timeutil"

	"github.com/rs/zerolog"
)

type sessionKey struct{}

// WithSessionID tags ctx with the chat session a booking belongs to.
func WithSessionID(ctx context.Context, sessionID int64) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(sessionKey{}).(int64)
	return id
}

// Submitter creates an appointment from a complete draft.
type Submitter interface {
	Submit(ctx context.Context, draft models.BookingDraft, idempotencyKey string) (*models.Appointment, error)
}

type BookingService struct {
	api    domain.SchedulingAPI
	events domain.EventPublisher
	logger *zerolog.Logger
}

func NewBookingService(schedulingAPI domain.SchedulingAPI, publisher domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		api:    schedulingAPI,
		events: publisher,
		logger: logging.Component(logger, "booking"),
	}
}

// Submit issues exactly one create-appointment call. An incomplete draft fails
// with *IncompleteBookingError and no network traffic. Backend failures come
// back as *SubmissionError with the server's message preserved.
func (s *BookingService) Submit(ctx context.Context, draft models.BookingDraft, idempotencyKey string) (*models.Appointment, error) {
	if missing := draft.Missing(); len(missing) > 0 {
		metrics.ObserveSubmission(metrics.SubmissionIncomplete, 0)
		return nil, &IncompleteBookingError{Missing: missing}
	}
	if !draft.ValidInterval() {
		metrics.ObserveSubmission(metrics.SubmissionIncomplete, 0)
		return nil, validationError("end", "must be after start")
	}

	req := domain.CreateAppointmentRequest{
		ServiceID: draft.Service.ID,
		StaffID:   draft.StaffMember.ID,
		Start:     draft.Start.UTC(),
		End:       draft.End.UTC(),
		TimeZone:  draft.Zone(),
		Comments:  strings.TrimSpace(draft.CommentsText()),
		SessionID: SessionIDFromContext(ctx),
	}

	sessionID := req.SessionID
	started := time.Now()
	appt, err := s.api.CreateAppointment(ctx, req, idempotencyKey)
	elapsed := time.Since(started)
	if err != nil {
		metrics.ObserveSubmission(metrics.SubmissionFailure, elapsed)
		s.logger.Warn().Err(err).
			Int64("session_id", sessionID).
			Str("idempotency_key", idempotencyKey).
			Msg("appointment creation failed")
		return nil, toSubmissionError(err)
	}

	fillFromDraft(appt, draft)
	metrics.ObserveSubmission(metrics.SubmissionSuccess, elapsed)
	s.logger.Info().
		Int64("session_id", sessionID).
		Str("appointment_id", appt.ID).
		Str("service_id", appt.Service.ID).
		Str("staff_id", appt.StaffMember.ID).
		Time("start", appt.Start).
		Msg("appointment created")

	if s.events != nil {
		payload := events.AppointmentEventPayload{
			SessionID:     sessionID,
			AppointmentID: appt.ID,
			ServiceName:   appt.Service.Name,
			StaffName:     appt.StaffMember.Name,
			Start:         appt.Start,
			Status:        appt.Status,
		}
		if err := s.events.PublishJSON(events.EventAppointmentCreated, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish appointment_created")
		}
	}
	return appt, nil
}

func toSubmissionError(err error) error {
	var herr *api.HTTPError
	if errors.As(err, &herr) {
		return &SubmissionError{Message: herr.Message, StatusCode: herr.StatusCode, Err: err}
	}
	return &SubmissionError{Err: err}
}

// fillFromDraft completes fields a terse backend response may omit.
func fillFromDraft(appt *models.Appointment, draft models.BookingDraft) {
	if appt.Service.ID == "" {
		appt.Service = *draft.Service
	}
	if appt.StaffMember.ID == "" {
		appt.StaffMember = *draft.StaffMember
	}
	if appt.Start.IsZero() {
		appt.Start = draft.Start.UTC()
	}
	if appt.End.IsZero() {
		appt.End = draft.End.UTC()
	}
	if appt.TimeZone == "" {
		appt.TimeZone = draft.Zone()
	}
	if appt.Comments == "" {
		appt.Comments = draft.CommentsText()
	}
	if appt.Status == "" {
		appt.Status = models.StatusPending
	}
}

// Confirmation is what the confirmed step shows.
type Confirmation struct {
	Appointment models.Appointment
	TimeZone    string
}

// Countdown is the time until the appointment in its coarsest whole unit.
func (c Confirmation) Countdown(now time.Time) timeutil.CountdownValue {
	return timeutil.Countdown(now, c.Appointment.Start)
}

// Describe renders the appointment for display in the booking's time zone.
func (c Confirmation) Describe(format timeutil.TimeFormat) (string, error) {
	zone := c.TimeZone
	if zone == "" {
		zone = c.Appointment.TimeZone
	}
	day, err := timeutil.FormatDate(c.Appointment.Start, zone)
	if err != nil {
		return "", err
	}
	span, err := timeutil.FormatRange(c.Appointment.Start, c.Appointment.End, zone, format)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(c.Appointment.Service.Name)
	if c.Appointment.StaffMember.Name != "" {
		b.WriteString(" with ")
		b.WriteString(c.Appointment.StaffMember.Name)
	}
	b.WriteString("\n")
	b.WriteString(day)
	b.WriteString(", ")
	b.WriteString(span)
	b.WriteString(" (")
	b.WriteString(zone)
	b.WriteString(")")
	return b.String(), nil
}
