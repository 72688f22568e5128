package bot

import (
	"bookflow/internal/config"
	"bookflow/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var _ domain.TelegramSender = (*BotWrapper)(nil)

// BotWrapper adapts *tgbotapi.BotAPI to domain.TelegramSender.
type BotWrapper struct {
	*tgbotapi.BotAPI
}

func (w *BotWrapper) GetSelf() tgbotapi.User {
	return w.Self
}

// NewTelegramSender connects to the Bot API with the configured token.
func NewTelegramSender(cfg config.TelegramConfig) (*BotWrapper, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Debug
	return &BotWrapper{BotAPI: api}, nil
}
