package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/adapters/outbound/tui"
	"github.com/openkraft/keeper/internal/bootstrap"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "List recorded maintenance runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(args)
			if err != nil {
				return err
			}
			cfg, err := bootstrap.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			store, err := bootstrap.OpenHistory(path, cfg)
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}
			g.logger.Debug("history loaded", zap.String("db", cfg.EffectiveHistoryDB()), zap.Int("runs", len(entries)))

			if jsonOutput {
				return renderJSON(cmd, entries)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderHistory(entries))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 30, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output history as JSON")

	return cmd
}
