package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/chatweave/internal/bus"
	"github.com/sandevgo/chatweave/internal/config"
	"github.com/sandevgo/chatweave/internal/extractor"
	"github.com/sandevgo/chatweave/internal/page"
	"github.com/sandevgo/chatweave/internal/platform"
	"github.com/sandevgo/chatweave/internal/service/export"
	"github.com/sandevgo/chatweave/internal/service/premium"
	"github.com/sandevgo/chatweave/internal/storage"
	"github.com/sandevgo/chatweave/internal/syncer"
	httptransport "github.com/sandevgo/chatweave/internal/transport/http"
	"github.com/sandevgo/chatweave/internal/transport/mcp"
	"github.com/sandevgo/chatweave/internal/transport/notify"
	"github.com/sandevgo/chatweave/pkg/log"
	"github.com/sandevgo/chatweave/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	err := initEnv(ctx, config.GetRuntimePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)

	// 2. Storage
	store, cleanup, err := storage.New(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(cleanup))

	if store.IsFirstTime(ctx) {
		logger.Warn().Msg("no configuration found, run 'weave install' for guided setup")
	}

	// 3. Message bus and domain services
	b := bus.New(64)
	pm := premium.NewManager(ctx, store.Backend())
	ex := export.New(store, pm)

	// 4. Notifiers
	notifiers, err := initNotifiers(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize notifiers")
	}

	// 5. Sync orchestrator, the single bus consumer and storage writer
	orch := syncer.New(store, b, notifiers...)

	// 6. Browser bridge and per-platform extractors
	browser, err := page.NewBrowser(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to browser")
	}
	services = append(services, srv.NewCleanup(browser.Close))

	settings := store.GetSettings(ctx)
	for _, prof := range platform.All() {
		if !settings.PlatformEnabled(prof.Platform) {
			continue
		}
		sess, err := browser.OpenSession(ctx, prof.BaseURL)
		if err != nil {
			// One unreachable platform must not take the daemon down
			logger.Error().Err(err).Stringer("platform", prof.Platform).Msg("failed to open platform session")
			continue
		}
		e := extractor.New(prof, sess, b)
		orch.RegisterSession(prof.Platform, e)
		services = append(services, e)
	}

	services = append(services, orch)

	// 7. Transports
	if appCfg.EnableHTTP {
		services = append(services, httptransport.NewServer(appCfg.HTTPPort, store, b, orch, ex, pm))
	}
	if appCfg.EnableMCP {
		services = append(services, mcp.NewServer(store, orch))
	}

	return services
}

func initNotifiers(ctx context.Context) ([]syncer.Notifier, error) {
	var notifiers []syncer.Notifier

	tgCfg := config.NewTelegramConfig(ctx)
	if tgCfg.Enabled {
		tg, err := notify.NewTelegram(tgCfg)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}

	return notifiers, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
