package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/adapters/outbound/shell"
	"github.com/openkraft/keeper/internal/domain"
)

// Runner verifies the build by running each command in sequence. The first
// failing or timed-out command fails the whole build.
type Runner struct {
	dir      string
	commands []string
	timeout  time.Duration
	exec     shell.Runner
	logger   *zap.Logger
}

// New builds a runner for projectPath. Without configured commands the
// toolchain is detected from the project's manifest files.
func New(projectPath string, cfg domain.ProjectConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	commands := cfg.Build.Commands
	if len(commands) == 0 {
		commands = DetectCommands(projectPath)
	}
	return &Runner{
		dir:      projectPath,
		commands: commands,
		timeout:  cfg.EffectiveBuildTimeout(),
		exec:     shell.Exec{},
		logger:   logger,
	}
}

// WithExec replaces the command runner.
func (r *Runner) WithExec(e shell.Runner) *Runner {
	r.exec = e
	return r
}

func (r *Runner) Commands() []string { return r.commands }

func (r *Runner) Run(ctx context.Context) error {
	if len(r.commands) == 0 {
		return fmt.Errorf("no build commands configured or detected in %s", r.dir)
	}
	for _, c := range r.commands {
		start := time.Now()
		cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := shell.Run(cmdCtx, r.exec, r.dir, c)
		cancel()
		if err != nil {
			if cmdCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%s: timed out after %s", c, r.timeout)
			}
			return fmt.Errorf("%s: %w", c, err)
		}
		r.logger.Debug("build command passed", zap.String("command", c), zap.Duration("took", time.Since(start)))
	}
	return nil
}

// DetectCommands picks build commands from the manifests present in dir.
func DetectCommands(dir string) []string {
	var cmds []string
	if exists(filepath.Join(dir, "package.json")) {
		if exists(filepath.Join(dir, "tsconfig.json")) {
			cmds = append(cmds, "npx tsc --noEmit")
		}
		cmds = append(cmds, "npm run build --if-present")
	}
	if exists(filepath.Join(dir, "go.mod")) {
		cmds = append(cmds, "go build ./...", "go vet ./...")
	}
	return cmds
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
