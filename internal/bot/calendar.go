package bot

import (
	"fmt"
	"strconv"
	"time"

	"bookflow/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const monthLayout = "2006-01"

var weekdayHeader = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// bookingWindow is the range of local dates a user may pick, inclusive.
type bookingWindow struct {
	first time.Time
	last  time.Time
}

// newBookingWindow starts at today's date in zone and spans days days.
func newBookingWindow(now time.Time, zone string, days int) (bookingWindow, error) {
	loc, err := timeutil.LoadZone(zone)
	if err != nil {
		return bookingWindow{}, err
	}
	local := now.In(loc)
	first := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	if days < 1 {
		days = 1
	}
	return bookingWindow{first: first, last: first.AddDate(0, 0, days-1)}, nil
}

func (w bookingWindow) contains(day time.Time) bool {
	return !day.Before(w.first) && !day.After(w.last)
}

// clampMonth returns the first of month, kept within the window.
func (w bookingWindow) clampMonth(month time.Time) time.Time {
	m := firstOfMonth(month)
	if m.Before(firstOfMonth(w.first)) {
		return firstOfMonth(w.first)
	}
	if m.After(firstOfMonth(w.last)) {
		return firstOfMonth(w.last)
	}
	return m
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// calendarKeyboard builds a Monday-first month grid. Days outside the window are
// shown as dots and do nothing.
func calendarKeyboard(month time.Time, window bookingWindow) tgbotapi.InlineKeyboardMarkup {
	month = window.clampMonth(month)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 9)

	nav := []tgbotapi.InlineKeyboardButton{noopButton(" ")}
	prev := month.AddDate(0, -1, 0)
	if !prev.Before(firstOfMonth(window.first)) {
		nav[0] = tgbotapi.NewInlineKeyboardButtonData("◀️", cbMonth+prev.Format(monthLayout))
	}
	nav = append(nav, noopButton(month.Format("January 2006")))
	next := month.AddDate(0, 1, 0)
	if !next.After(firstOfMonth(window.last)) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("▶️", cbMonth+next.Format(monthLayout)))
	} else {
		nav = append(nav, noopButton(" "))
	}
	rows = append(rows, nav)

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, d := range weekdayHeader {
		header = append(header, noopButton(d))
	}
	rows = append(rows, header)

	// Monday = 0
	offset := (int(month.Weekday()) + 6) % 7
	daysInMonth := month.AddDate(0, 1, -1).Day()

	row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < offset; i++ {
		row = append(row, noopButton(" "))
	}
	for day := 1; day <= daysInMonth; day++ {
		date := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
		if window.contains(date) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(day), cbDate+date.Format(timeutil.DateLayout)))
		} else {
			row = append(row, noopButton("·"))
		}
		if len(row) == 7 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, noopButton(" "))
		}
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbPickStaff),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func parseMonth(raw string) (time.Time, error) {
	m, err := time.Parse(monthLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", raw, err)
	}
	return m, nil
}

func noopButton(label string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(label, cbNoop)
}
