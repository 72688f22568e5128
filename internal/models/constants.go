package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

// Step is a booking wizard state.
type Step string

const (
	StepSelectService      Step = "select_service"
	StepSelectAvailability Step = "select_availability"
	StepEnterDetails       Step = "enter_details"
	StepReviewSummary      Step = "review_summary"
	StepSubmitting         Step = "submitting"
	StepConfirmed          Step = "confirmed"
)

// Order returns the position of the step in the wizard, or -1 for unknown steps.
func (s Step) Order() int {
	switch s {
	case StepSelectService:
		return 0
	case StepSelectAvailability:
		return 1
	case StepEnterDetails:
		return 2
	case StepReviewSummary:
		return 3
	case StepSubmitting:
		return 4
	case StepConfirmed:
		return 5
	default:
		return -1
	}
}

const (
	// DefaultDraftTTL время жизни снимка черновика в Redis
	DefaultDraftTTL = 24 * 60 * 60 // 24 часа в секундах

	// DefaultCatalogCacheTTL время жизни кэша услуг и сотрудников
	DefaultCatalogCacheTTL = 10 * 60

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60

	// DefaultAppointmentsMaxAge через сколько секунд локальный список записей перечитывается с бэкенда
	DefaultAppointmentsMaxAge = 5 * 60

	// DefaultAppointmentsPageSize сколько записей показывать в списке
	DefaultAppointmentsPageSize = 10
)
