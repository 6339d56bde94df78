package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/matt-dinh13/empulse-sub000/internal/infra/httpclient"
)

// Announcer posts short recognition summaries to a company channel.
// Deliveries are best effort; callers must never fail a vote on an
// announcement error.
type Announcer struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewAnnouncer(token string, chatID int64) (*Announcer, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpclient.New(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Announcer{api: api, chatID: chatID}, nil
}

func (a *Announcer) Announce(ctx context.Context, text string) error {
	if a == nil || a.api == nil {
		return fmt.Errorf("telegram announcer is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("announcement text is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := a.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram announcement: %w", err)
	}

	return nil
}
