package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/domain"
	"bookflow/internal/logging"
	"bookflow/internal/metrics"
	"bookflow/internal/models"
	"bookflow/internal/service"
	"bookflow/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const updateTimeout = 30 * time.Second

// Catalog lists what can be booked.
type Catalog interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	ListStaff(ctx context.Context, serviceID string) ([]models.StaffMember, error)
}

type AppointmentLister interface {
	List(ctx context.Context, sessionID int64) ([]models.Appointment, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, sessionID int64, limit int, window time.Duration) (bool, error)
}

// Deps are the collaborators a Bot needs. Limiter and Appointments may be nil.
type Deps struct {
	Telegram     domain.TelegramService
	Config       *config.Config
	Sessions     *service.SessionManager
	Catalog      Catalog
	Appointments AppointmentLister
	Limiter      RateLimiter
	Logger       *zerolog.Logger
}

// Bot renders the booking wizard in Telegram. It forwards user actions to the
// session's wizard and renders whatever step the wizard ends up on.
type Bot struct {
	tg           domain.TelegramService
	cfg          *config.Config
	sessions     *service.SessionManager
	catalog      Catalog
	appointments AppointmentLister
	limiter      RateLimiter
	format       timeutil.TimeFormat
	views        *viewStore
	logger       *zerolog.Logger
	now          func() time.Time

	loads sync.WaitGroup
}

func NewBot(deps Deps) (*Bot, error) {
	if deps.Telegram == nil {
		return nil, errors.New("telegram service is required")
	}
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("catalog is required")
	}

	return &Bot{
		tg:           deps.Telegram,
		cfg:          deps.Config,
		sessions:     deps.Sessions,
		catalog:      deps.Catalog,
		appointments: deps.Appointments,
		limiter:      deps.Limiter,
		format:       deps.Config.Booking.Format(),
		views:        newViewStore(),
		logger:       logging.Component(deps.Logger, "bot"),
		now:          time.Now,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tg.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving updates and waits for background availability loads.
func (b *Bot) Stop() {
	if b == nil {
		return
	}
	b.tg.StopReceivingUpdates()
	b.loads.Wait()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		metrics.ObserveUpdate(time.Since(start))
	}()

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(updateCtx, func() {
		var userID, chatID int64
		switch {
		case update.Message != nil && update.Message.From != nil:
			userID, chatID = update.Message.From.ID, update.Message.Chat.ID
		case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
			userID, chatID = update.CallbackQuery.From.ID, update.CallbackQuery.Message.Chat.ID
		}
		if userID == 0 {
			return
		}

		if !b.allow(updateCtx, userID) {
			if update.CallbackQuery != nil {
				_ = b.tg.AnswerCallback(update.CallbackQuery.ID, msgSlowDown)
			} else {
				b.reply(chatID, msgSlowDown)
			}
			return
		}

		if update.CallbackQuery != nil {
			b.handleCallback(updateCtx, update.CallbackQuery)
			return
		}
		b.handleMessage(updateCtx, update.Message)
	})
}
