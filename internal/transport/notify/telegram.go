// Package notify delivers sync-run outcomes to the owner's Telegram chat.
// The notifier is optional; when no token is configured the orchestrator is
// simply wired without one.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/sandevgo/chatweave/internal/config"
	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/pkg/log"
)

type Telegram struct {
	bot     *tele.Bot
	ownerID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*Telegram, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: b, ownerID: cfg.OwnerID}, nil
}

// Notify sends the outcome message. Delivery failures are logged, never
// propagated; a broken notifier must not affect syncing.
func (t *Telegram) Notify(ctx context.Context, n core.SyncNotification) {
	msg := formatNotification(n)
	if _, err := t.bot.Send(tele.ChatID(t.ownerID), msg, tele.ModeHTML); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("platform", n.Platform.String()).Msg("failed to send telegram notification")
	}
}

func formatNotification(n core.SyncNotification) string {
	platform := strings.ToUpper(n.Platform.String())
	if n.Success {
		return fmt.Sprintf("<b>Sync complete</b>\n%s: %d conversations synced", platform, n.Total)
	}
	return fmt.Sprintf("<b>Sync Failed</b>\n%s: %s", platform, n.Error)
}
