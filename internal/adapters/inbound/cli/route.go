package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkraft/keeper/internal/adapters/outbound/config"
	"github.com/openkraft/keeper/internal/adapters/outbound/tui"
	"github.com/openkraft/keeper/internal/application"
	"github.com/openkraft/keeper/internal/bootstrap"
	"github.com/openkraft/keeper/internal/domain"
)

// routeFlags are shared by route and ask.
type routeFlags struct {
	path      string
	agent     string
	model     string
	provider  string
	localOnly bool
}

func (f *routeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "path", ".", "Project whose .keeper.yaml configures the router")
	cmd.Flags().StringVar(&f.agent, "agent", "", "Calling agent name (enables agent overrides)")
	cmd.Flags().StringVar(&f.model, "model", "", "Preferred model, used verbatim")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Provider of the preferred model")
	cmd.Flags().BoolVar(&f.localOnly, "local-only", false, "Never route to a remote provider")
}

func (f *routeFlags) router(g *globals) (*application.RouterService, error) {
	cfg, err := bootstrap.LoadConfig(f.path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	r := bootstrap.NewRouter(cfg.Router, nil, g.logger)
	if f.localOnly {
		r.SetLocalOnly(true)
	}
	return r, nil
}

func (f *routeFlags) request(task string) domain.RouteRequest {
	return domain.RouteRequest{
		Task:              task,
		Agent:             f.agent,
		PreferredModel:    f.model,
		PreferredProvider: f.provider,
	}
}

func newRouteCmd(g *globals) *cobra.Command {
	var (
		flags      routeFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "route <task>",
		Short: "Show which provider and model a task would be routed to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := flags.router(g)
			if err != nil {
				return err
			}
			d := r.Route(cmd.Context(), flags.request(args[0]))
			if jsonOutput {
				return renderJSON(cmd, d)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderDecision(d))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the decision as JSON")
	return cmd
}

func newRoutesCmd(g *globals) *cobra.Command {
	var (
		path       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			table := bootstrap.NewRouter(cfg.Router, nil, g.logger).Table()
			if jsonOutput {
				return renderJSON(cmd, table)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderRoutes(tableConfig(table)))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", ".", "Project whose .keeper.yaml configures the router")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the table as JSON")

	cmd.AddCommand(newRoutesSetCmd())
	return cmd
}

func newRoutesSetCmd() *cobra.Command {
	var (
		path             string
		fallbackProvider string
		fallbackModel    string
	)

	cmd := &cobra.Command{
		Use:   "set <tier> <provider> <model>",
		Short: "Persist a route table entry to .keeper.yaml",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := domain.ParseTier(args[0])
			if err != nil {
				return err
			}
			if (fallbackProvider == "") != (fallbackModel == "") {
				return fmt.Errorf("--fallback-provider and --fallback-model must be given together")
			}
			entry := domain.RouteEntry{
				Primary:  domain.RouteTarget{Provider: args[1], Model: args[2]},
				Fallback: domain.RouteTarget{Provider: fallbackProvider, Model: fallbackModel},
			}

			// Start from the file alone so environment overrides are not persisted.
			cfg, err := config.ReadFile(path)
			if err != nil {
				return err
			}
			if cfg.Router.Routes == nil {
				cfg.Router.Routes = make(map[domain.Tier]domain.RouteEntry)
			}
			cfg.Router.Routes[tier] = entry
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Route for %s set to %s\n", tier, entry.Primary)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", ".", "Project directory holding .keeper.yaml")
	cmd.Flags().StringVar(&fallbackProvider, "fallback-provider", "", "Fallback provider")
	cmd.Flags().StringVar(&fallbackModel, "fallback-model", "", "Fallback model")
	return cmd
}

func tableConfig(t application.RouteTable) domain.RouterConfig {
	return domain.RouterConfig{
		LocalOnly:      t.LocalOnly,
		LocalDefault:   t.LocalDefault,
		Providers:      t.Providers,
		Routes:         t.Routes,
		AgentOverrides: t.AgentOverrides,
	}
}
