package main

import (
	"fmt"
	"time"

	"github.com/sandevgo/chatweave/internal/config"
	"github.com/sandevgo/chatweave/internal/service/premium"
	"github.com/sandevgo/chatweave/internal/service/ui"
	"github.com/sandevgo/chatweave/internal/storage"
	"github.com/sandevgo/chatweave/pkg/log"
	"github.com/sandevgo/chatweave/pkg/tokens"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Show per-platform sync status",
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

		appCfg := config.NewAppConfig(ctx)
		store, cleanup, err := storage.New(ctx, appCfg)
		if err != nil {
			return err
		}
		defer cleanup() //nolint:errcheck

		fmt.Println(ui.TitleStyle.Render("ChatWeave status"))

		for _, st := range store.SyncStatuses(ctx) {
			lastSync := "never"
			if st.LastSync != nil {
				lastSync = time.UnixMilli(*st.LastSync).Format(time.RFC822)
			}
			state := "idle"
			if st.IsExtracting {
				state = fmt.Sprintf("extracting %d%%", st.ExtractionProgress)
			}
			fmt.Printf("  %-8s %4d conversations  last sync: %-20s %s\n",
				ui.UsageStyle.Render(st.Platform.String()),
				st.TotalConversations, lastSync, ui.DescStyle.Render(state))
		}

		var totalTokens int
		conversations := store.Conversations(ctx)
		for _, c := range conversations {
			for _, m := range c.Messages {
				totalTokens += tokens.Count(m.Content)
			}
		}
		fmt.Printf("\n  %d conversations stored, ~%d tokens\n", len(conversations), totalTokens)

		pm := premium.NewManager(ctx, store.Backend())
		tier := "free"
		if pm.IsPremium(ctx) {
			tier = "premium"
		}
		fmt.Printf("  tier: %s\n", tier)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
