package main

import (
	"fmt"
	"os"

	"github.com/sandevgo/chatweave/internal/config"
	"github.com/sandevgo/chatweave/internal/storage"
	"github.com/sandevgo/chatweave/pkg/log"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:          "import <file>",
	Short:        "Import conversations from a previous export",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			logger.Fatal().Err(err).Msg("failed to init env")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		appCfg := config.NewAppConfig(ctx)
		store, cleanup, err := storage.New(ctx, appCfg)
		if err != nil {
			return err
		}
		defer cleanup() //nolint:errcheck

		if err := store.ImportData(ctx, data); err != nil {
			return err
		}

		fmt.Printf("imported %d conversations\n", len(store.Conversations(ctx)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
