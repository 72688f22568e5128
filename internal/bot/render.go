package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bookflow/internal/models"
	"bookflow/internal/service"
	"bookflow/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes and actions.
const (
	cbService   = "svc:"
	cbStaff     = "staff:"
	cbDate      = "date:"
	cbMonth     = "month:"
	cbSlot      = "slot:"
	cbEdit      = "edit:"
	cbPage      = "appts:"
	cbPickDate  = "pickdate"
	cbPickStaff = "pickstaff"
	cbSkip      = "skip"
	cbBack      = "back"
	cbConfirm   = "confirm"
	cbCancel    = "cancel"
	cbDone      = "done"
	cbRetry     = "retry"
	cbNoop      = "noop"

	staffAny = "any"
)

const (
	slotsPerRow    = 3
	maxCommentsLen = 500
)

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func servicesView(services []models.Service) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("*Choose a service*\n\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for i, s := range services {
		sb.WriteString(fmt.Sprintf("%d. %s (%d min)%s\n", i+1, escape(s.Name), s.DurationMinutes, modeSuffix(s)))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Name, cbService+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel),
	))
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func modeSuffix(s models.Service) string {
	switch {
	case s.Online && s.InPerson:
		return ", online or in person"
	case s.Online:
		return ", online"
	case s.InPerson:
		return ", in person"
	default:
		return ""
	}
}

func staffView(svc models.Service, staff []models.StaffMember) (string, tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf("*%s*\n\nWho would you like to see?", escape(svc.Name))
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Anyone available", cbStaff+staffAny)),
	}
	for i, m := range staff {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(m.Name, cbStaff+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel),
	))
	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// slotsView lists the result grouped into Morning, Afternoon and Evening.
// Buttons carry the result generation so taps on an outdated list are detected.
func slotsView(result *service.AvailabilityResult, format timeutil.TimeFormat) (string, tgbotapi.InlineKeyboardMarkup, error) {
	zone := result.Params.TimeZone
	groups, err := result.Groups()
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	day, err := time.Parse(timeutil.DateLayout, result.Params.Date)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}

	index := make(map[string]int, len(result.Slots))
	for i, s := range result.Slots {
		index[s.Key()] = i
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s*\nTimes shown in %s\n", day.Format("Mon, Jan 2 2006"), escape(zone)))

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, section := range groups.Sections() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(noopButton(section.Period.Title())))
		row := make([]tgbotapi.InlineKeyboardButton, 0, slotsPerRow)
		for _, slot := range section.Slots {
			label, err := timeutil.FormatClock(slot.StartTimeUTC, zone, format)
			if err != nil {
				return "", tgbotapi.InlineKeyboardMarkup{}, err
			}
			data := fmt.Sprintf("%s%d:%d", cbSlot, result.Generation, index[slot.Key()])
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, data))
			if len(row) == slotsPerRow {
				rows = append(rows, row)
				row = make([]tgbotapi.InlineKeyboardButton, 0, slotsPerRow)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📅 Other date", cbPickDate),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel),
	))
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

func parseSlotData(data string) (generation uint64, index int, err error) {
	raw := strings.TrimPrefix(data, cbSlot)
	genPart, idxPart, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed slot callback %q", data)
	}
	if generation, err = strconv.ParseUint(genPart, 10, 64); err != nil {
		return 0, 0, err
	}
	if index, err = strconv.Atoi(idxPart); err != nil {
		return 0, 0, err
	}
	return generation, index, nil
}

func commentsView(draft models.BookingDraft) (string, tgbotapi.InlineKeyboardMarkup) {
	text := "Anything we should know before the appointment? Send it as a message, or tap Skip."
	if c := draft.CommentsText(); c != "" {
		text += "\n\nCurrent note: _" + escape(c) + "_"
	}
	return text, tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Skip", cbSkip),
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
		),
	)
}

// summaryView renders a complete draft for review.
func summaryView(draft models.BookingDraft, format timeutil.TimeFormat) (string, tgbotapi.InlineKeyboardMarkup, error) {
	zone := draft.Zone()
	day, err := timeutil.FormatDate(*draft.Start, zone)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	span, err := timeutil.FormatRange(*draft.Start, *draft.End, zone, format)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}

	var sb strings.Builder
	sb.WriteString("*Review your booking*\n\n")
	sb.WriteString(fmt.Sprintf("Service: %s (%d min)\n", escape(draft.Service.Name), draft.Service.DurationMinutes))
	sb.WriteString(fmt.Sprintf("With: %s\n", escape(draft.StaffMember.Name)))
	sb.WriteString(fmt.Sprintf("When: %s, %s\n", day, span))
	sb.WriteString(fmt.Sprintf("Time zone: %s\n", escape(zone)))
	if c := draft.CommentsText(); c != "" {
		sb.WriteString(fmt.Sprintf("Comments: %s\n", escape(c)))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Confirm booking", cbConfirm)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Edit service", cbEdit+string(service.EditService)),
			tgbotapi.NewInlineKeyboardButtonData("Edit staff", cbEdit+string(service.EditStaff)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Edit time", cbEdit+string(service.EditTime)),
			tgbotapi.NewInlineKeyboardButtonData("Edit comments", cbEdit+string(service.EditComments)),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel)),
	)
	return sb.String(), keyboard, nil
}

func confirmationView(c *service.Confirmation, now time.Time, format timeutil.TimeFormat) (string, tgbotapi.InlineKeyboardMarkup, error) {
	details, err := c.Describe(format)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}

	var sb strings.Builder
	sb.WriteString("🎉 *You're booked!*\n\n")
	sb.WriteString(escape(details))
	sb.WriteString("\n\n")
	if countdown := c.Countdown(now); countdown.Unit == timeutil.UnitNow {
		sb.WriteString("Starting now.")
	} else {
		sb.WriteString("Starts in " + countdown.String() + ".")
	}
	if link := c.Appointment.MeetingLink; link != "" {
		sb.WriteString("\nJoin online: " + escape(link))
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Done", cbDone)),
	)
	return sb.String(), keyboard, nil
}

func statusEmoji(status string) string {
	switch status {
	case models.StatusConfirmed:
		return "✅"
	case models.StatusCancelled:
		return "❌"
	case models.StatusCompleted:
		return "🏁"
	default:
		return "⏳"
	}
}

// appointmentEntry renders one appointment of the history list in zone.
func appointmentEntry(a models.Appointment, zone string, format timeutil.TimeFormat) string {
	when, err := timeutil.FormatDateTime(a.Start, zone, format)
	if err != nil {
		when = timeutil.FormatUTC(a.Start)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *%s*", statusEmoji(a.Status), escape(a.Service.Name)))
	if a.StaffMember.Name != "" {
		sb.WriteString(" with " + escape(a.StaffMember.Name))
	}
	sb.WriteString("\n   📅 " + when)
	sb.WriteString("\n   📊 " + a.Status + "\n\n")
	return sb.String()
}
