// Package shell runs external commands and folds their stderr into errors so
// failures read like the tool's own message.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command in dir and returns its stdout.
type Runner interface {
	Output(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// Exec is the os/exec backed Runner.
type Exec struct{}

// Output runs name with args in dir. When the command fails, whatever it
// wrote to stdout is still returned alongside the error, because some tools
// (npm outdated) report results through a non-zero exit.
func (Exec) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stdout.Bytes(), ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %s", name, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Run executes a command line in dir, discarding stdout.
func Run(ctx context.Context, r Runner, dir, commandLine string) error {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return fmt.Errorf("empty command")
	}
	_, err := r.Output(ctx, dir, fields[0], fields[1:]...)
	return err
}
