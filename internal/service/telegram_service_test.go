package service

import (
	"errors"
	"testing"

	"bookflow/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *mockTelegramSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *mockTelegramSender) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.UpdatesChannel)
}

func (m *mockTelegramSender) GetSelf() tgbotapi.User {
	args := m.Called()
	return args.Get(0).(tgbotapi.User)
}

func (m *mockTelegramSender) StopReceivingUpdates() {
	m.Called()
}

func TestTelegramService(t *testing.T) {
	mockSender := new(mockTelegramSender)
	svc := NewTelegramService(mockSender)

	t.Run("SendMessage", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.Text == "hello" && msg.ChatID == 123
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.SendMessage(123, "hello")
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("SendWithInlineKeyboard", func(t *testing.T) {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Next", "next"),
		))
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.ParseMode == models.ParseModeMarkdown && msg.ReplyMarkup != nil
		})).Return(tgbotapi.Message{MessageID: 9}, nil).Once()

		msg, err := svc.SendWithInlineKeyboard(123, "*Pick a service*", keyboard)
		assert.NoError(t, err)
		assert.Equal(t, 9, msg.MessageID)
		mockSender.AssertExpectations(t)
	})

	t.Run("EditMessageNotModified", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			edit, ok := c.(tgbotapi.EditMessageTextConfig)
			return ok && edit.MessageID == 5 && edit.ReplyMarkup == nil
		})).Return(tgbotapi.Message{}, errors.New("Bad Request: message is not modified")).Once()

		_, err := svc.EditMessage(123, 5, "same", nil)
		assert.NoError(t, err)
	})

	t.Run("EditMessageError", func(t *testing.T) {
		keyboard := tgbotapi.NewInlineKeyboardMarkup()
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			edit, ok := c.(tgbotapi.EditMessageTextConfig)
			return ok && edit.MessageID == 6 && edit.ReplyMarkup != nil
		})).Return(tgbotapi.Message{}, errors.New("Forbidden: bot was blocked")).Once()

		_, err := svc.EditMessage(123, 6, "text", &keyboard)
		assert.Error(t, err)
	})

	t.Run("AnswerCallback", func(t *testing.T) {
		mockSender.On("Request", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			_, ok := c.(tgbotapi.CallbackConfig)
			return ok
		})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

		assert.NoError(t, svc.AnswerCallback("cb123", "ok"))
		mockSender.AssertExpectations(t)
	})

	t.Run("SendTyping", func(t *testing.T) {
		mockSender.On("Request", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			action, ok := c.(tgbotapi.ChatActionConfig)
			return ok && action.Action == tgbotapi.ChatTyping
		})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

		assert.NoError(t, svc.SendTyping(123))
		mockSender.AssertExpectations(t)
	})
}
