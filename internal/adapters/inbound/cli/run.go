package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkraft/keeper/internal/adapters/outbound/tui"
	"github.com/openkraft/keeper/internal/application"
	"github.com/openkraft/keeper/internal/bootstrap"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		dryRun      bool
		noPublish   bool
		channels    []string
		apiBase     string
		jsonOutput  bool
		failOnError bool
	)

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Run the nightly maintenance pipeline",
		Long: "Scan, apply safe fixes, verify the build (rolling back on failure), score, " +
			"record metrics, open a pull request and notify channels.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(args)
			if err != nil {
				return err
			}
			cfg, err := bootstrap.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// Flags win over file and environment.
			if cmd.Flags().Changed("api-base") {
				cfg.Maintenance.APIBase = apiBase
			}
			opts := application.MaintainOptionsFrom(path, cfg)
			if cmd.Flags().Changed("dry-run") {
				opts.DryRun = dryRun
			}
			if cmd.Flags().Changed("channel") {
				opts.Channels = channels
			}
			if noPublish {
				opts.Publish = false
			}

			m, err := bootstrap.NewMaintenance(path, cfg, opts, g.logger)
			if err != nil {
				return err
			}
			defer m.Close()

			report := m.Service.Run(cmd.Context())

			if jsonOutput {
				if err := renderJSON(cmd, report); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderReport(report))
			}

			if failOnError && len(report.Errors) > 0 {
				return fmt.Errorf("maintenance run finished with %d errors", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan, verify and score without modifying files or publishing")
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "Apply fixes locally but do not open a pull request")
	cmd.Flags().StringArrayVar(&channels, "channel", nil, "Notification channel (repeatable)")
	cmd.Flags().StringVar(&apiBase, "api-base", "", "Base URL of the metrics/notification API")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when the report has errors")

	return cmd
}
