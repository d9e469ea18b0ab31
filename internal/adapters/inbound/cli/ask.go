package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkraft/keeper/internal/adapters/outbound/llm"
	"github.com/openkraft/keeper/internal/adapters/outbound/tui"
)

func newAskCmd(g *globals) *cobra.Command {
	var (
		flags     routeFlags
		showRoute bool
	)

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Route a prompt and send it to the chosen model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := flags.router(g)
			if err != nil {
				return err
			}
			d := r.Route(cmd.Context(), flags.request(args[0]))
			if showRoute {
				fmt.Fprint(cmd.ErrOrStderr(), tui.RenderDecision(d))
			}

			answer, err := llm.New(r, g.logger).Complete(cmd.Context(), d, args[0])
			if err != nil {
				return fmt.Errorf("asking %s: %w", d.Target(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&showRoute, "show-route", false, "Print the routing decision to stderr")
	return cmd
}
