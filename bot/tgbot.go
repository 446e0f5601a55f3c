// Package bot hosts the Telegram transport: long polling for inbound
// messages and the raw API handle the flow messenger sends through.
package bot

import (
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"

	"botflow/internal/lib/sl"
)

// Submitter enqueues inbound chat events for flow execution.
type Submitter interface {
	Submit(botID int64, chatID, message string) error
}

type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	flowBotID   int64
	submit      Submitter
}

// NewTgBot connects to the Telegram API.
func NewTgBot(botName, apiKey string, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		botUsername: botName,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// API exposes the raw bot handle for the outbound messenger.
func (t *TgBot) API() *tgbotapi.Bot {
	return t.api
}

// SetFlowRoute points inbound messages at a flow definition. Must be called
// before Start.
func (t *TgBot) SetFlowRoute(flowBotID int64, submit Submitter) {
	t.flowBotID = flowBotID
	t.submit = submit
}

// Start begins long polling and blocks until the updater stops.
func (t *TgBot) Start() error {

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		// If an error is returned by a handler, log it and continue going.
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			log.Println("an error occurred while handling update:", err.Error())
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})

	dispatcher.AddHandler(handlers.NewMessage(message.Text, t.onMessage))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.All, t.onCallback))

	updater := ext.NewUpdater(dispatcher, nil)

	// Start receiving updates.
	err := updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.log.With(
		slog.String("bot_name", t.botUsername),
	).Info("polling started")

	// Idle, to keep updates coming in, and avoid bot stopping.
	updater.Idle()

	return nil
}

// onMessage queues one flow pass per inbound text message.
func (t *TgBot) onMessage(b *tgbotapi.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	if msg == nil || msg.Text == "" || t.submit == nil {
		return nil
	}

	chatID := strconv.FormatInt(msg.Chat.Id, 10)
	if err := t.submit.Submit(t.flowBotID, chatID, msg.Text); err != nil {
		t.log.With(
			slog.String("chat_id", chatID),
		).Warn("queueing inbound message", sl.Err(err))
	}
	return nil
}

// onCallback queues one flow pass per pressed inline button, the callback
// data standing in as the inbound message so callback blocks can match it.
func (t *TgBot) onCallback(b *tgbotapi.Bot, ctx *ext.Context) error {
	cb := ctx.CallbackQuery
	if cb == nil || cb.Data == "" || t.submit == nil {
		return nil
	}

	// Acknowledge first so the client stops the spinner even when the
	// queue rejects the event.
	if _, err := cb.Answer(b, nil); err != nil {
		t.log.Warn("answering callback query", sl.Err(err))
	}

	chatID := strconv.FormatInt(cb.From.Id, 10)
	if msg := cb.Message; msg != nil {
		chatID = strconv.FormatInt(msg.GetChat().Id, 10)
	}
	if err := t.submit.Submit(t.flowBotID, chatID, cb.Data); err != nil {
		t.log.With(
			slog.String("chat_id", chatID),
		).Warn("queueing callback", sl.Err(err))
	}
	return nil
}
