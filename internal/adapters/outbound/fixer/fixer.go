package fixer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/adapters/outbound/jsast"
	"github.com/openkraft/keeper/internal/domain"
	"github.com/openkraft/keeper/internal/domain/remedy"
)

// transform rewrites one file's content and reports how many occurrences it
// removed.
type transform func(ctx context.Context, path string, content []byte) ([]byte, int, error)

// transforms is the closed set of remediations the fixer may apply.
var transforms = map[domain.IssueKind]transform{
	domain.IssueConsoleLogs:   jsast.StripDebugPrints,
	domain.IssueUnusedImports: stripUnusedImports,
}

func stripUnusedImports(_ context.Context, _ string, content []byte) ([]byte, int, error) {
	out, removed := remedy.StripUnusedImports(string(content))
	return []byte(out), removed, nil
}

// SafeFixer applies pre-approved textual fixes to source files and keeps the
// original content of every file it writes so the session can be undone.
type SafeFixer struct {
	root    string
	lister  domain.SourceLister
	logger  *zap.Logger
	backups map[string][]byte
	order   []string
}

func New(projectPath string, lister domain.SourceLister, logger *zap.Logger) *SafeFixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafeFixer{
		root:    projectPath,
		lister:  lister,
		logger:  logger,
		backups: make(map[string][]byte),
	}
}

// Apply runs the transform of each recognized issue kind over every source
// file. Kinds without a transform are skipped. A category that fails yields a
// single error entry and the remaining categories still run.
func (f *SafeFixer) Apply(ctx context.Context, issues []domain.Issue) []domain.Fix {
	var fixes []domain.Fix
	for _, iss := range issues {
		tf, ok := transforms[iss.Kind]
		if !ok {
			continue
		}
		applied, err := f.applyKind(ctx, iss.Kind, tf)
		fixes = append(fixes, applied...)
		if err != nil {
			f.logger.Warn("fix category failed", zap.String("kind", string(iss.Kind)), zap.Error(err))
			fixes = append(fixes, domain.ErrorFix(iss.Kind, err))
		}
	}
	return fixes
}

func (f *SafeFixer) applyKind(ctx context.Context, kind domain.IssueKind, tf transform) (fixes []domain.Fix, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	files, err := f.lister.ListSources(ctx, f.root)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return fixes, err
		}
		path := filepath.Join(f.root, filepath.FromSlash(rel))
		data, err := os.ReadFile(path)
		if err != nil {
			return fixes, fmt.Errorf("reading %s: %w", rel, err)
		}

		updated, removed, err := tf(ctx, rel, data)
		if err != nil {
			return fixes, err
		}
		if removed == 0 || bytes.Equal(updated, data) {
			continue
		}

		if err := f.write(path, data, updated); err != nil {
			return fixes, fmt.Errorf("writing %s: %w", rel, err)
		}
		f.logger.Debug("fixed file",
			zap.String("file", rel),
			zap.String("kind", string(kind)),
			zap.Int("removed", removed))
		fixes = append(fixes, domain.Fix{File: rel, Kind: string(kind), Count: removed})
	}
	return fixes, nil
}

// write stores the pre-session content of path the first time it is touched,
// then writes the new content with the file's existing permissions.
func (f *SafeFixer) write(path string, original, updated []byte) error {
	if _, ok := f.backups[path]; !ok {
		f.backups[path] = original
		f.order = append(f.order, path)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, updated, mode)
}

// Rollback restores every backed-up file verbatim and clears the backups.
// With no backups it does nothing.
func (f *SafeFixer) Rollback() error {
	var errs []error
	for _, path := range f.order {
		if err := os.WriteFile(path, f.backups[path], 0o644); err != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", path, err))
		}
	}
	f.backups = make(map[string][]byte)
	f.order = nil
	return errors.Join(errs...)
}

// Touched lists the files with a pending backup, sorted.
func (f *SafeFixer) Touched() []string {
	out := make([]string, 0, len(f.backups))
	for p := range f.backups {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
