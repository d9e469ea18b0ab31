package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkraft/keeper/internal/adapters/outbound/tui"
	"github.com/openkraft/keeper/internal/bootstrap"
	"github.com/openkraft/keeper/internal/domain"
)

func newScanCmd(g *globals) *cobra.Command {
	var (
		jsonOutput bool
		ciMode     bool
		minScore   int
		badge      bool
	)

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan and score a project without changing anything",
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

			summary := bootstrap.NewScanService(cfg, g.logger).
				Summarize(cmd.Context(), path, cfg.EffectiveMinCoverage())

			switch {
			case jsonOutput:
				if err := renderJSON(cmd, summary); err != nil {
					return err
				}
			case badge:
				url := fmt.Sprintf("https://img.shields.io/badge/health-%d%%2F100-%s", summary.Score, domain.BadgeColor(summary.Score))
				fmt.Fprintln(cmd.OutOrStdout(), url)
			default:
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderScan(summary.Scan, summary.AutoFixable, summary.RequiresApproval, summary.Score))
			}

			if ciMode && summary.Score < minScore {
				return fmt.Errorf("score %d is below minimum %d", summary.Score, minScore)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output scan summary as JSON")
	cmd.Flags().BoolVar(&ciMode, "ci", false, "CI mode: exit 1 if below --min")
	cmd.Flags().IntVar(&minScore, "min", 0, "Minimum score for CI mode")
	cmd.Flags().BoolVar(&badge, "badge", false, "Output shields.io badge URL")

	return cmd
}
