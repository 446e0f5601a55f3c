// Package telegram adapts the Telegram Bot API to the flow engine's
// outbound messaging gateway.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"botflow/entity"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// TelegramAPI defines the Telegram bot methods needed by the messenger.
// This avoids importing the concrete bot type and prevents circular imports.
type TelegramAPI interface {
	SendMessage(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error)
	SendMediaGroup(chatId int64, media []tgbotapi.InputMedia, opts *tgbotapi.SendMediaGroupOpts) ([]tgbotapi.Message, error)
}

// Messenger implements flow.Messenger for Telegram.
type Messenger struct {
	api TelegramAPI
}

// NewMessenger creates a new Telegram Messenger.
func NewMessenger(api TelegramAPI) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) SendText(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("chat id %q: %w", chatID, err)
	}
	_, err = m.api.SendMessage(id, text, &tgbotapi.SendMessageOpts{
		ParseMode: "HTML",
	})
	return err
}

func (m *Messenger) SendMediaGroup(ctx context.Context, chatID string, items []entity.MediaItem) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("chat id %q: %w", chatID, err)
	}

	media := make([]tgbotapi.InputMedia, 0, len(items))
	for _, item := range items {
		media = append(media, inputMedia(item))
	}

	_, err = m.api.SendMediaGroup(id, media, nil)
	return err
}

// SendKeyboard sends a prompt carrying a reply or inline keyboard markup.
func (m *Messenger) SendKeyboard(ctx context.Context, chatID string, kb *entity.KeyboardContent) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("chat id %q: %w", chatID, err)
	}

	var markup tgbotapi.ReplyMarkup
	switch kb.KeyboardType {
	case "inline":
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Buttons))
		for _, row := range kb.Buttons {
			btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				btns = append(btns, tgbotapi.InlineKeyboardButton{
					Text:         b.Text,
					CallbackData: b.CallbackData,
				})
			}
			rows = append(rows, btns)
		}
		markup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	default:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Buttons))
		for _, row := range kb.Buttons {
			btns := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, b := range row {
				btns = append(btns, tgbotapi.KeyboardButton{Text: b.Text})
			}
			rows = append(rows, btns)
		}
		markup = tgbotapi.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
	}

	_, err = m.api.SendMessage(id, kb.Text, &tgbotapi.SendMessageOpts{
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	return err
}

func inputMedia(item entity.MediaItem) tgbotapi.InputMedia {
	file := tgbotapi.InputFileByURL(item.URL)
	switch item.Type {
	case "video":
		return tgbotapi.InputMediaVideo{Media: file, Caption: item.Caption}
	case "document":
		return tgbotapi.InputMediaDocument{Media: file, Caption: item.Caption}
	case "audio":
		return tgbotapi.InputMediaAudio{Media: file, Caption: item.Caption}
	default:
		return tgbotapi.InputMediaPhoto{Media: file, Caption: item.Caption}
	}
}
