package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/chatweave/pkg/log"
)

// TelegramConfig drives the optional sync-notification channel.
type TelegramConfig struct {
	Enabled bool   `env:"CHATWEAVE_ENABLE_TELEGRAM_NOTIFY" envDefault:"false"`
	Token   string `env:"CHATWEAVE_TELEGRAM_TOKEN"`
	OwnerID int64  `env:"CHATWEAVE_TELEGRAM_OWNER_ID"`
}

func NewTelegramConfig(ctx context.Context) *TelegramConfig {
	c := &TelegramConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse telegram config")
	}
	return c
}

func (c TelegramConfig) GetToken() string  { return c.Token }
func (c TelegramConfig) GetOwnerID() int64 { return c.OwnerID }
