package bot

import (
	"context"
	"fmt"
	"strings"

	"bookflow/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type PaginationParams struct {
	ChatID     int64
	MessageID  int // 0 if new message
	Page       int
	Title      string
	PagePrefix string
}

// renderPaginatedList draws one page of a list with previous/next buttons.
func (b *Bot) renderPaginatedList(params PaginationParams, totalCount int, itemsPerPage int, renderer func(startIdx, endIdx int) string) {
	if itemsPerPage <= 0 {
		itemsPerPage = models.DefaultAppointmentsPageSize
	}

	totalPages := (totalCount + itemsPerPage - 1) / itemsPerPage
	if params.Page >= totalPages && totalPages > 0 {
		params.Page = totalPages - 1
	}
	if params.Page < 0 {
		params.Page = 0
	}

	startIdx := params.Page * itemsPerPage
	endIdx := startIdx + itemsPerPage
	if endIdx > totalCount {
		endIdx = totalCount
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("%s\n\n", params.Title))
	if totalPages > 1 {
		message.WriteString(fmt.Sprintf("Page %d of %d\n\n", params.Page+1, totalPages))
	}
	message.WriteString(renderer(startIdx, endIdx))

	var navButtons []tgbotapi.InlineKeyboardButton
	if params.Page > 0 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Previous", fmt.Sprintf("%s%d", params.PagePrefix, params.Page-1)))
	}
	if endIdx < totalCount {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("%s%d", params.PagePrefix, params.Page+1)))
	}

	var markup *tgbotapi.InlineKeyboardMarkup
	if len(navButtons) > 0 {
		m := tgbotapi.NewInlineKeyboardMarkup(navButtons)
		markup = &m
	}
	b.show(params.ChatID, params.MessageID, message.String(), markup)
}

// renderAppointments shows the appointment history, upcoming first.
func (b *Bot) renderAppointments(ctx context.Context, chatID int64, messageID int, userID int64, page int) {
	if b.appointments == nil {
		b.reply(chatID, "Appointment history is not available.")
		return
	}
	list, err := b.appointments.List(ctx, userID)
	if err != nil {
		b.logErr(ctx, err, "list appointments")
		b.reply(chatID, "❌ Couldn't load your appointments. Please try again later.")
		return
	}
	if len(list) == 0 {
		b.reply(chatID, "You have no appointments yet. Use /book to make one.")
		return
	}

	zone := b.sessions.Get(ctx, userID).TimeZone()
	params := PaginationParams{
		ChatID:     chatID,
		MessageID:  messageID,
		Page:       page,
		Title:      "📊 *Your appointments*",
		PagePrefix: cbPage,
	}
	b.renderPaginatedList(params, len(list), models.DefaultAppointmentsPageSize, func(startIdx, endIdx int) string {
		var content strings.Builder
		for _, a := range list[startIdx:endIdx] {
			content.WriteString(appointmentEntry(a, zone, b.format))
		}
		return content.String()
	})
}
