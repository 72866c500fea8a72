package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chuikova-e/nutritioner-bot/internal/conversation"
)

// Telegram refuses bot downloads above 20 MB; anything larger is cut off.
const maxDownload = 20 << 20

type Handler interface {
	Handle(ctx context.Context, ev conversation.Event)
}

// Dispatcher queues jobs per key, in order.
type Dispatcher interface {
	Submit(key string, job func(ctx context.Context))
}

// Bot polls for updates and feeds them to the conversation machine through
// the dispatcher, one queue per user.
type Bot struct {
	api        API
	handler    Handler
	dispatcher Dispatcher
	http       *http.Client
	logger     *slog.Logger
}

func NewBot(api API, handler Handler, dispatcher Dispatcher, logger *slog.Logger) *Bot {
	return &Bot{
		api:        api,
		handler:    handler,
		dispatcher: dispatcher,
		http:       &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// Run long-polls until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(update)
		}
	}
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		// Stops the client-side spinner.
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.logger.Warn("answering callback failed", slog.String("error", err.Error()))
		}
	}

	ev, ok := b.toEvent(update)
	if !ok {
		return
	}
	b.dispatcher.Submit(queueKey(ev), func(ctx context.Context) {
		b.handler.Handle(ctx, ev)
	})
}

// queueKey serializes a user's events. Users without a handle still need an
// ordered queue for their denial replies.
func queueKey(ev conversation.Event) string {
	if ev.Handle != "" {
		return ev.Handle
	}
	return "id:" + strconv.FormatInt(ev.UserID, 10)
}

// toEvent strips an update down to what the conversation needs. ok is false
// for updates the bot ignores (edits, stickers, channel posts).
func (b *Bot) toEvent(update tgbotapi.Update) (conversation.Event, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return conversation.Event{}, false
		}
		return conversation.Event{
			Kind:   conversation.EventButton,
			Handle: cb.From.UserName,
			UserID: cb.From.ID,
			ChatID: cb.Message.Chat.ID,
			Button: cb.Data,
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return conversation.Event{}, false
	}
	ev := conversation.Event{
		Handle: msg.From.UserName,
		UserID: msg.From.ID,
		ChatID: msg.Chat.ID,
	}

	switch {
	case msg.IsCommand():
		ev.Kind = conversation.EventCommand
		ev.Command = msg.Command()
		ev.Args = msg.CommandArguments()
	case len(msg.Photo) > 0:
		// Sizes are sent smallest first.
		largest := msg.Photo[len(msg.Photo)-1]
		ev.Kind = conversation.EventPhoto
		ev.Text = msg.Caption
		ev.GroupToken = msg.MediaGroupID
		ev.Media = b.downloader(largest.FileID)
	case msg.Voice != nil:
		ev.Kind = conversation.EventVoice
		ev.Media = b.downloader(msg.Voice.FileID)
	case msg.Text != "":
		ev.Kind = conversation.EventText
		ev.Text = msg.Text
	default:
		return conversation.Event{}, false
	}
	return ev, true
}

// downloader defers the file fetch until the machine asks for it, which is
// after the access check.
func (b *Bot) downloader(fileID string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		url, err := b.api.GetFileDirectURL(fileID)
		if err != nil {
			return nil, fmt.Errorf("telegram: resolving file %s: %w", fileID, err)
		}
		return b.fetch(ctx, url)
	}
}

func (b *Bot) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: building download request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: downloading file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("telegram: reading file: %w", err)
	}
	return data, nil
}
