package bot

import (
	"context"
	"strconv"
	"strings"

	"bookflow/internal/models"
	"bookflow/internal/service"
	"bookflow/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `*Book an appointment*

/book - start a new booking
/appointments - your appointments
/timezone - show or change your time zone, e.g. /timezone America/Toronto
/cancel - drop the booking in progress
/help - this message`

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	userID, chatID := msg.From.ID, msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	zerolog.Ctx(ctx).Debug().
		Int64("user_id", userID).
		Str("username", msg.From.UserName).
		Bool("command", msg.IsCommand()).
		Msg("Handling message")

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	s := b.sessions.Get(ctx, userID)
	if s.Wizard.Step() == models.StepEnterDetails && text != "" {
		b.saveComments(ctx, s, chatID, text)
		return
	}
	b.reply(chatID, "Use /book to start a booking or /help to see what I can do.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.sendMarkdown(chatID, "👋 Welcome! I can book appointments with our team.\n\n"+helpText)
		s := b.sessions.Get(ctx, userID)
		if step := s.Wizard.Step(); step != models.StepSelectService || !s.Draft.Draft().IsEmpty() {
			b.reply(chatID, "You have a booking in progress. Picking up where you left off.")
			b.renderStep(ctx, s, chatID, 0)
		}

	case "help":
		b.sendMarkdown(chatID, helpText)

	case "book":
		s := b.sessions.Get(ctx, userID)
		if err := s.Wizard.Start(ctx); err != nil {
			b.reply(chatID, userMessage(err))
			return
		}
		s.Query.Reset()
		b.views.reset(userID)
		b.showServices(ctx, s, chatID, 0)

	case "cancel":
		b.cancelBooking(ctx, b.sessions.Get(ctx, userID), chatID, 0)

	case "appointments":
		b.renderAppointments(ctx, chatID, 0, userID, 0)

	case "timezone":
		s := b.sessions.Get(ctx, userID)
		zone := strings.TrimSpace(msg.CommandArguments())
		if zone == "" {
			b.reply(chatID, "Your time zone is "+s.TimeZone()+". Change it with /timezone <Area/City>.")
			return
		}
		if _, err := timeutil.LoadZone(zone); err != nil {
			b.reply(chatID, userMessage(err))
			return
		}
		s.SetTimeZone(zone)
		b.reply(chatID, "🕒 Times will now be shown in "+zone+".")

	default:
		b.reply(chatID, "Unknown command. /help lists what I can do.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	if err := b.tg.AnswerCallback(cq.ID, ""); err != nil {
		b.logErr(ctx, err, "answer callback")
	}

	data := cq.Data
	if data == cbNoop {
		return
	}
	userID, chatID, messageID := cq.From.ID, cq.Message.Chat.ID, cq.Message.MessageID

	if strings.HasPrefix(data, cbPage) {
		page, _ := strconv.Atoi(strings.TrimPrefix(data, cbPage))
		b.renderAppointments(ctx, chatID, messageID, userID, page)
		return
	}

	s := b.sessions.Get(ctx, userID)
	switch {
	case strings.HasPrefix(data, cbService):
		b.chooseService(ctx, s, chatID, messageID, strings.TrimPrefix(data, cbService))
	case strings.HasPrefix(data, cbStaff):
		b.chooseStaff(ctx, s, chatID, messageID, strings.TrimPrefix(data, cbStaff))
	case strings.HasPrefix(data, cbMonth):
		b.changeMonth(ctx, s, chatID, messageID, strings.TrimPrefix(data, cbMonth))
	case strings.HasPrefix(data, cbDate):
		b.chooseDate(ctx, s, chatID, messageID, strings.TrimPrefix(data, cbDate))
	case strings.HasPrefix(data, cbSlot):
		b.chooseSlot(ctx, s, chatID, messageID, data)
	case strings.HasPrefix(data, cbEdit):
		b.edit(ctx, s, chatID, messageID, service.EditTarget(strings.TrimPrefix(data, cbEdit)))
	case data == cbPickDate:
		b.showCalendar(ctx, s, chatID, messageID, nil)
	case data == cbPickStaff:
		b.showStaff(ctx, s, chatID, messageID)
	case data == cbRetry:
		b.retry(ctx, s, chatID, messageID)
	case data == cbSkip:
		b.skipComments(ctx, s, chatID, messageID)
	case data == cbBack:
		b.back(ctx, s, chatID, messageID)
	case data == cbConfirm:
		b.confirm(ctx, s, chatID, messageID)
	case data == cbDone:
		b.done(ctx, s, chatID, messageID)
	case data == cbCancel:
		b.cancelBooking(ctx, s, chatID, messageID)
	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("Unknown callback")
	}
}
