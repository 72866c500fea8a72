// Package telegram connects the conversation machine to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chuikova-e/nutritioner-bot/internal/conversation"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Sender renders conversation replies as Telegram messages.
type Sender struct {
	api    API
	logger *slog.Logger
}

func NewSender(api API, logger *slog.Logger) *Sender {
	return &Sender{api: api, logger: logger}
}

// Send delivers r. An HTML reply the API refuses (usually markup the model
// got wrong) is sent again as plain text.
func (s *Sender) Send(ctx context.Context, chatID int64, r conversation.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(chatID, r)
	_, err := s.api.Send(msg)
	if err != nil && r.HTML {
		s.logger.Warn("html reply rejected, retrying as plain text",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		msg.ParseMode = ""
		_, err = s.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("telegram: sending to chat %d: %w", chatID, err)
	}
	return nil
}

func buildMessage(chatID int64, r conversation.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if r.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}

	switch {
	case len(r.Buttons) > 0:
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r.Buttons))
		for _, b := range r.Buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.ID))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	case len(r.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(r.Keyboard))
		for _, label := range r.Keyboard {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
		}
		kb := tgbotapi.NewOneTimeReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		msg.ReplyMarkup = kb
	case r.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	return msg
}
