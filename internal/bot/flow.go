package bot

import (
	"context"
	"errors"
	"strconv"
	"time"
	"unicode/utf8"

	"bookflow/internal/models"
	"bookflow/internal/service"
	"bookflow/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const loadGrace = 5 * time.Second

// renderStep shows whatever the wizard is on.
func (b *Bot) renderStep(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	switch s.Wizard.Step() {
	case models.StepSelectService:
		b.showServices(ctx, s, chatID, messageID)
	case models.StepSelectAvailability:
		if s.Draft.Draft().HasSlot() {
			b.showCalendar(ctx, s, chatID, messageID, nil)
			return
		}
		b.showStaff(ctx, s, chatID, messageID)
	case models.StepEnterDetails:
		b.showComments(s, chatID, messageID)
	case models.StepReviewSummary:
		b.showSummary(ctx, s, chatID, messageID)
	case models.StepSubmitting:
		b.reply(chatID, "⏳ Your booking is being submitted.")
	case models.StepConfirmed:
		b.showConfirmation(ctx, s, chatID, messageID)
	}
}

// stale re-renders the current step when a button from an older message is used.
func (b *Bot) stale(ctx context.Context, s *service.Session, chatID int64) {
	b.reply(chatID, msgStaleButton)
	b.renderStep(ctx, s, chatID, 0)
}

func (b *Bot) showServices(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	services, err := b.catalog.ListServices(ctx)
	if err != nil {
		b.logErr(ctx, err, "list services")
		b.reply(chatID, "❌ Couldn't load the list of services. Please try /book again in a moment.")
		return
	}
	if len(services) == 0 {
		b.reply(chatID, "No services can be booked right now.")
		return
	}
	b.views.update(s.ID, func(v *chatView) { v.services = services })

	text, keyboard := servicesView(services)
	b.show(chatID, messageID, text, &keyboard)
}

func (b *Bot) chooseService(ctx context.Context, s *service.Session, chatID int64, messageID int, raw string) {
	step := s.Wizard.Step()
	if step != models.StepSelectService && step != models.StepSelectAvailability {
		b.stale(ctx, s, chatID)
		return
	}
	view := b.views.get(s.ID)
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 || i >= len(view.services) {
		b.stale(ctx, s, chatID)
		return
	}
	svc := view.services[i]

	prev := s.Draft.Draft().Service
	s.Draft.UpdateState(models.BookingDraft{Service: &svc})
	if prev == nil || prev.ID != svc.ID {
		s.Draft.ClearSlot()
		s.Query.Reset()
		b.views.update(s.ID, func(v *chatView) {
			v.staff = nil
			v.staffID = ""
		})
	}

	if step == models.StepSelectService {
		if _, err := s.Wizard.Next(); err != nil {
			b.reply(chatID, userMessage(err))
			return
		}
	}
	b.showStaff(ctx, s, chatID, messageID)
}

func (b *Bot) showStaff(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	svc := s.Draft.Draft().Service
	if svc == nil {
		b.showServices(ctx, s, chatID, messageID)
		return
	}
	staff, err := b.catalog.ListStaff(ctx, svc.ID)
	if err != nil {
		b.logErr(ctx, err, "list staff")
		b.reply(chatID, "❌ Couldn't load the team for this service. Please try again.")
		return
	}
	b.views.update(s.ID, func(v *chatView) { v.staff = staff })

	text, keyboard := staffView(*svc, staff)
	b.show(chatID, messageID, text, &keyboard)
}

func (b *Bot) chooseStaff(ctx context.Context, s *service.Session, chatID int64, messageID int, raw string) {
	if s.Wizard.Step() != models.StepSelectAvailability {
		b.stale(ctx, s, chatID)
		return
	}
	staffID := ""
	if raw != staffAny {
		view := b.views.get(s.ID)
		i, err := strconv.Atoi(raw)
		if err != nil || i < 0 || i >= len(view.staff) {
			b.stale(ctx, s, chatID)
			return
		}
		staffID = view.staff[i].ID
	}
	b.views.update(s.ID, func(v *chatView) { v.staffID = staffID })
	b.showCalendar(ctx, s, chatID, messageID, nil)
}

func (b *Bot) window(s *service.Session) (bookingWindow, error) {
	return newBookingWindow(b.now(), s.TimeZone(), b.cfg.Booking.CalendarDays)
}

func (b *Bot) showCalendar(ctx context.Context, s *service.Session, chatID int64, messageID int, month *time.Time) {
	window, err := b.window(s)
	if err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	shown := window.first
	if month != nil {
		shown = *month
	} else if v := b.views.get(s.ID); !v.month.IsZero() {
		shown = v.month
	}
	shown = window.clampMonth(shown)
	b.views.update(s.ID, func(v *chatView) { v.month = shown })

	text := "📅 *Pick a date*\nTimes are shown in " + escape(s.TimeZone()) + "."
	keyboard := calendarKeyboard(shown, window)
	b.show(chatID, messageID, text, &keyboard)
}

func (b *Bot) changeMonth(ctx context.Context, s *service.Session, chatID int64, messageID int, raw string) {
	month, err := parseMonth(raw)
	if err != nil {
		b.stale(ctx, s, chatID)
		return
	}
	b.showCalendar(ctx, s, chatID, messageID, &month)
}

func (b *Bot) chooseDate(ctx context.Context, s *service.Session, chatID int64, messageID int, raw string) {
	if s.Wizard.Step() != models.StepSelectAvailability {
		b.stale(ctx, s, chatID)
		return
	}
	draft := s.Draft.Draft()
	if draft.Service == nil {
		b.showServices(ctx, s, chatID, messageID)
		return
	}
	day, err := time.Parse(timeutil.DateLayout, raw)
	window, werr := b.window(s)
	if err != nil || werr != nil || !window.contains(day) {
		b.reply(chatID, "⚠️ That date can't be booked. Please pick another.")
		b.showCalendar(ctx, s, chatID, messageID, nil)
		return
	}

	params := service.AvailabilityParams{
		ServiceID: draft.Service.ID,
		StaffID:   b.views.get(s.ID).staffID,
		Date:      raw,
		TimeZone:  s.TimeZone(),
	}
	b.show(chatID, messageID, "🔎 Looking for open times on "+day.Format("Mon, Jan 2")+"...", nil)
	b.loadSlots(ctx, s, chatID, messageID, func(ctx context.Context) (*service.AvailabilityResult, error) {
		return s.Query.Fetch(ctx, params)
	})
}

func (b *Bot) retry(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	if s.Wizard.Step() != models.StepSelectAvailability {
		b.stale(ctx, s, chatID)
		return
	}
	b.show(chatID, messageID, "🔎 Trying again...", nil)
	b.loadSlots(ctx, s, chatID, messageID, s.Query.Retry)
}

// loadSlots runs the availability lookup off the update loop so a newer date
// tap is handled while an older lookup is still in flight.
func (b *Bot) loadSlots(
	ctx context.Context,
	s *service.Session,
	chatID int64,
	messageID int,
	fetch func(ctx context.Context) (*service.AvailabilityResult, error),
) {
	if err := b.tg.SendTyping(chatID); err != nil {
		b.logErr(ctx, err, "send typing")
	}

	logger := zerolog.Ctx(ctx)
	timeout := time.Duration(b.cfg.API.TimeoutSeconds)*time.Second + loadGrace

	b.loads.Add(1)
	go func() {
		defer b.loads.Done()
		loadCtx, cancel := context.WithTimeout(logger.WithContext(context.Background()), timeout)
		defer cancel()

		b.withRecovery(loadCtx, func() {
			result, err := fetch(loadCtx)
			switch {
			case errors.Is(err, service.ErrStaleResult):
				return
			case err != nil:
				b.logErr(loadCtx, err, "load availability")
				keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("🔄 Retry", cbRetry),
					tgbotapi.NewInlineKeyboardButtonData("📅 Other date", cbPickDate),
				))
				b.show(chatID, messageID, escape(userMessage(err)), &keyboard)
			case len(result.Slots) == 0:
				day, _ := time.Parse(timeutil.DateLayout, result.Params.Date)
				b.reply(chatID, "No open times on "+day.Format("Mon, Jan 2")+". Please pick another day.")
				b.showCalendar(loadCtx, s, chatID, messageID, nil)
			default:
				text, keyboard, err := slotsView(result, b.format)
				if err != nil {
					b.logErr(loadCtx, err, "render slots")
					b.reply(chatID, msgGenericError)
					return
				}
				b.show(chatID, messageID, text, &keyboard)
			}
		})
	}()
}

func (b *Bot) chooseSlot(ctx context.Context, s *service.Session, chatID int64, messageID int, data string) {
	if s.Wizard.Step() != models.StepSelectAvailability {
		b.stale(ctx, s, chatID)
		return
	}
	generation, index, err := parseSlotData(data)
	if err == nil {
		_, _, err = s.Selection.SelectAt(generation, index)
	} else {
		err = service.ErrStaleResult
	}
	switch {
	case errors.Is(err, service.ErrStaleResult):
		b.reply(chatID, "⚠️ Those times are out of date. Please pick a date again.")
		b.showCalendar(ctx, s, chatID, 0, nil)
		return
	case err != nil:
		b.reply(chatID, userMessage(err))
		return
	}
	if _, err := s.Wizard.Next(); err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	b.showComments(s, chatID, messageID)
}

func (b *Bot) showComments(s *service.Session, chatID int64, messageID int) {
	text, keyboard := commentsView(s.Draft.Draft())
	b.show(chatID, messageID, text, &keyboard)
}

func (b *Bot) saveComments(ctx context.Context, s *service.Session, chatID int64, text string) {
	if utf8.RuneCountInString(text) > maxCommentsLen {
		text = string([]rune(text)[:maxCommentsLen])
	}
	s.Draft.UpdateState(models.BookingDraft{Comments: &text})
	if _, err := s.Wizard.Next(); err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	b.showSummary(ctx, s, chatID, 0)
}

func (b *Bot) skipComments(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	if s.Wizard.Step() != models.StepEnterDetails {
		b.stale(ctx, s, chatID)
		return
	}
	if _, err := s.Wizard.Next(); err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	b.showSummary(ctx, s, chatID, messageID)
}

func (b *Bot) showSummary(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	draft, err := s.Wizard.Review()
	if err != nil {
		b.reply(chatID, userMessage(err))
		b.edit(ctx, s, chatID, 0, service.EditTime)
		return
	}
	text, keyboard, err := summaryView(draft, b.format)
	if err != nil {
		b.logErr(ctx, err, "render summary")
		b.reply(chatID, msgGenericError)
		return
	}
	b.show(chatID, messageID, text, &keyboard)
}

func (b *Bot) back(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	if _, err := s.Wizard.Back(); err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	b.renderStep(ctx, s, chatID, messageID)
}

func (b *Bot) edit(ctx context.Context, s *service.Session, chatID int64, messageID int, target service.EditTarget) {
	if _, err := s.Wizard.Edit(target); err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	switch target {
	case service.EditService:
		b.showServices(ctx, s, chatID, messageID)
	case service.EditStaff:
		b.showStaff(ctx, s, chatID, messageID)
	case service.EditTime:
		b.showCalendar(ctx, s, chatID, messageID, nil)
	case service.EditComments:
		b.showComments(s, chatID, messageID)
	}
}

func (b *Bot) confirm(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	if s.Wizard.Step() != models.StepReviewSummary {
		b.stale(ctx, s, chatID)
		return
	}
	b.show(chatID, messageID, "⏳ Booking your appointment...", nil)
	if err := b.tg.SendTyping(chatID); err != nil {
		b.logErr(ctx, err, "send typing")
	}

	if _, err := s.Wizard.Confirm(ctx); err != nil {
		b.logErr(ctx, err, "confirm booking")
		b.reply(chatID, userMessage(err))
		b.renderStep(ctx, s, chatID, 0)
		return
	}
	b.showConfirmation(ctx, s, chatID, messageID)
}

func (b *Bot) showConfirmation(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	c := s.Wizard.Confirmation()
	if c == nil {
		b.reply(chatID, msgGenericError)
		return
	}
	text, keyboard, err := confirmationView(c, b.now(), b.format)
	if err != nil {
		b.logErr(ctx, err, "render confirmation")
		b.reply(chatID, "🎉 You're booked!")
		return
	}
	b.show(chatID, messageID, text, &keyboard)
}

func (b *Bot) done(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	if err := s.Wizard.Acknowledge(ctx); err != nil {
		b.stale(ctx, s, chatID)
		return
	}
	s.Query.Reset()
	b.views.reset(s.ID)
	b.show(chatID, messageID, "✅ All set. Use /book for another appointment or /appointments to see your list.", nil)
}

func (b *Bot) cancelBooking(ctx context.Context, s *service.Session, chatID int64, messageID int) {
	if err := s.Wizard.Abandon(); err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	s.Query.Reset()
	b.views.reset(s.ID)
	b.show(chatID, messageID, "Booking cancelled. Use /book to start again.", nil)
}

// show edits messageID in place, or sends a new message when it is zero.
func (b *Bot) show(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	var err error
	switch {
	case messageID != 0:
		_, err = b.tg.EditMessage(chatID, messageID, text, keyboard)
	case keyboard != nil:
		_, err = b.tg.SendWithInlineKeyboard(chatID, text, *keyboard)
	default:
		_, err = b.tg.SendMarkdown(chatID, text)
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.tg.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	if _, err := b.tg.SendMarkdown(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) logErr(ctx context.Context, err error, action string) {
	zerolog.Ctx(ctx).Warn().Err(err).Str("action", action).Msg("Update handling failed")
}
