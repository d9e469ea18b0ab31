package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev"
	commit  = "none"
)

// globals is the state shared by every subcommand after PersistentPreRunE.
type globals struct {
	verbose bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "keeper",
		Short: "Nightly codebase maintenance and local-first model routing",
		Long: "Keeper scans a project for safe-to-fix debt, applies the fixes, verifies the build, " +
			"scores project health and proposes the result for review. It also routes prompts " +
			"to the cheapest capable model, preferring local inference.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.verbose)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			g.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = g.logger.Sync()
		},
	}
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newScanCmd(g))
	cmd.AddCommand(newHistoryCmd(g))
	cmd.AddCommand(newRouteCmd(g))
	cmd.AddCommand(newRoutesCmd(g))
	cmd.AddCommand(newAskCmd(g))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newMCPCmd(g))
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the CLI and reports a failing command on stderr.
func Execute() error {
	cmd := newRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// projectPath resolves the optional [path] argument.
func projectPath(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}

func renderJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
