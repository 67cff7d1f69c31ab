package main

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/chatweave/internal/config"
	"github.com/sandevgo/chatweave/internal/service/installer"
	"github.com/sandevgo/chatweave/internal/storage"
	"github.com/sandevgo/chatweave/pkg/log"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:           "install",
	Short:         "Run the guided ChatWeave setup",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Setup logger
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting setup wizard")

		// run wizard (includes save step)
		state, err := installer.RunWizard()
		if err != nil {
			return err
		}

		// Load the newly created .env file so NewAppConfig can see the values
		runtimePath := config.GetRuntimePath()
		envPath := filepath.Join(runtimePath, ".env")
		if err := godotenv.Load(envPath); err != nil {
			logger.Warn().Err(err).Str("path", envPath).Msg("failed to load .env file")
		}

		// Persist the wizard's user settings into storage
		appCfg := config.NewAppConfig(ctx)
		store, cleanup, err := storage.New(ctx, appCfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := cleanup(); err != nil {
				logger.Warn().Err(err).Msg("failed to close storage")
			}
		}()

		if err := store.SaveSettings(ctx, state.Settings); err != nil {
			return err
		}
		if err := store.MarkSetupComplete(ctx); err != nil {
			return err
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Setup complete! You can now run 'weave start'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
