package main

import (
	"fmt"
	"os"

	"github.com/sandevgo/chatweave/internal/config"
	"github.com/sandevgo/chatweave/internal/service/export"
	"github.com/sandevgo/chatweave/internal/service/premium"
	"github.com/sandevgo/chatweave/internal/storage"
	"github.com/sandevgo/chatweave/pkg/log"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:          "export",
	Short:        "Export all conversations to a file or stdout",
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

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		appCfg := config.NewAppConfig(ctx)
		store, cleanup, err := storage.New(ctx, appCfg)
		if err != nil {
			return err
		}
		defer cleanup() //nolint:errcheck

		pm := premium.NewManager(ctx, store.Backend())
		data, err := export.New(store, pm).Export(ctx, format)
		if err != nil {
			return err
		}

		if exportOut == "" || exportOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(exportOut, data, 0644); err != nil {
			return err
		}
		fmt.Printf("exported %d bytes to %s\n", len(data), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "export format: json, markdown, html or csv")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "-", "output file, '-' for stdout")
	rootCmd.AddCommand(exportCmd)
}
