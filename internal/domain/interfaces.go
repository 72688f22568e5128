package domain

import (
	"context"
	"time"

	"bookflow/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AvailabilityRequest is the body of POST /availability.
type AvailabilityRequest struct {
	ServiceID string `json:"serviceId"`
	StaffID   string `json:"staffId,omitempty"`
	Date      string `json:"date"`
	TimeZone  string `json:"timeZone"`
}

// CreateAppointmentRequest is the body of POST /appointments.
type CreateAppointmentRequest struct {
	ServiceID string    `json:"serviceId"`
	StaffID   string    `json:"staffId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	TimeZone  string    `json:"timeZone"`
	Comments  string    `json:"comments"`
	SessionID int64     `json:"sessionId"`
}

// SchedulingAPI is the external backend that owns slots and appointments.
type SchedulingAPI interface {
	FetchAvailability(ctx context.Context, req AvailabilityRequest) ([]models.AvailableSlot, error)
	CreateAppointment(ctx context.Context, req CreateAppointmentRequest, idempotencyKey string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, sessionID int64) ([]models.Appointment, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	ListStaff(ctx context.Context, serviceID string) ([]models.StaffMember, error)
}

// DraftRepository persists wizard snapshots between process restarts.
type DraftRepository interface {
	GetDraft(ctx context.Context, sessionID int64) (*models.DraftSnapshot, error)
	SaveDraft(ctx context.Context, snapshot *models.DraftSnapshot) error
	ClearDraft(ctx context.Context, sessionID int64) error
	CheckRateLimit(ctx context.Context, sessionID int64, limit int, window time.Duration) (bool, error)
}

// AppointmentStore is the local read-only copy of each session's appointment history.
type AppointmentStore interface {
	ReplaceAppointments(ctx context.Context, sessionID int64, appointments []models.Appointment) error
	ListAppointments(ctx context.Context, sessionID int64) ([]models.Appointment, error)
	MarkStale(ctx context.Context, sessionID int64) error
	CacheState(ctx context.Context, sessionID int64) (refreshedAt time.Time, stale bool, err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendMarkdown(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	SendTyping(chatID int64) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
