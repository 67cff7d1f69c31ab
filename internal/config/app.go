package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/chatweave/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"CHATWEAVE_RUNTIME_PATH" envDefault:".chatweave"`

	// Storage backend selection. "auto" probes sqlite and falls back to the
	// JSON file store, "sqlite" and "file" force a backend.
	StorageBackend string `env:"CHATWEAVE_STORAGE" envDefault:"auto"`

	// Browser bridge
	CdpURL       string `env:"CHATWEAVE_CDP_URL"`
	ChromeBinary string `env:"CHATWEAVE_CHROME_BINARY"`
	Headless     bool   `env:"CHATWEAVE_HEADLESS" envDefault:"true"`

	// Transport flags
	EnableHTTP bool `env:"CHATWEAVE_ENABLE_HTTP" envDefault:"true"`
	HTTPPort   int  `env:"CHATWEAVE_HTTP_PORT" envDefault:"8422"`
	EnableMCP  bool `env:"CHATWEAVE_ENABLE_MCP" envDefault:"false"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	// Keep the daemon and the wizard pointed at the same directory.
	c.RuntimePath = GetRuntimePath()
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "chatweave.db")
}

func (c AppConfig) GetFileStorePath() string {
	return filepath.Join(c.RuntimePath, "store")
}
