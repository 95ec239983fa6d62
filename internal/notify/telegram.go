package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dealwatch/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications to a single Telegram chat.
type Telegram struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// Notify sends a deal notification. Deals with an image are sent as a photo
// with the message as caption.
func (t *Telegram) Notify(_ context.Context, n model.Notification) {
	text := FormatNotification(n)
	if n.ImageURL != "" && len(text) <= 1024 {
		photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileURL(n.ImageURL))
		photo.Caption = text
		_, err := t.api.Send(photo)
		if err == nil {
			return
		}
		t.log.Warn("send photo, falling back to text", "chat_id", t.chatID, "url", n.URL, "error", err)
	}
	t.sendMessage(text)
}

// NotifyError sends an error notification.
func (t *Telegram) NotifyError(_ context.Context, r model.ErrorReport) {
	t.sendMessage(FormatError(r))
}

func (t *Telegram) sendMessage(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("send message", "chat_id", t.chatID, "error", err)
	}
}
