package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/openkraft/keeper/internal/adapters/outbound/shell"
	"github.com/openkraft/keeper/internal/domain"
)

// skipDirs are never descended into, whatever the configuration says.
var skipDirs = map[string]bool{
	"node_modules": true,
	".next":        true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"coverage":     true,
	"vendor":       true,
	".git":         true,
	".keeper":      true,
}

// FileScanner walks a project tree and measures source-level metrics. It
// implements domain.SourceLister and hands out domain.ScanProbe values.
type FileScanner struct {
	extensions   map[string]bool
	excludePaths []string
	cfg          domain.ProjectConfig
	runner       shell.Runner
}

// New builds a scanner from project configuration.
func New(cfg domain.ProjectConfig) *FileScanner {
	exts := make(map[string]bool)
	for _, e := range cfg.EffectiveExtensions() {
		exts[strings.ToLower(e)] = true
	}
	excludes := make([]string, 0, len(cfg.Scan.ExcludePaths))
	for _, p := range cfg.Scan.ExcludePaths {
		excludes = append(excludes, filepath.ToSlash(strings.TrimSuffix(p, "/")))
	}
	return &FileScanner{
		extensions:   exts,
		excludePaths: excludes,
		cfg:          cfg,
		runner:       shell.Exec{},
	}
}

// WithRunner replaces the command runner used by the dependency probe.
func (s *FileScanner) WithRunner(r shell.Runner) *FileScanner {
	s.runner = r
	return s
}

// ListSources returns source files relative to projectPath in walk order.
func (s *FileScanner) ListSources(ctx context.Context, projectPath string) ([]string, error) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, _ := filepath.Rel(absPath, path)
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path != absPath && (skipDirs[d.Name()] || s.excluded(relPath)) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.excluded(relPath) || !s.extensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".d.ts") {
			return nil
		}
		files = append(files, relPath)
		return nil
	})
	return files, err
}

func (s *FileScanner) excluded(relPath string) bool {
	for _, p := range s.excludePaths {
		if relPath == p || strings.HasPrefix(relPath, p+"/") {
			return true
		}
	}
	return false
}

// Probes returns one probe per scan metric, in report order.
func (s *FileScanner) Probes() []domain.ScanProbe {
	return []domain.ScanProbe{
		&sourceProbe{kind: domain.MetricAnyTypes, lister: s, count: countAnyTypes},
		&sourceProbe{kind: domain.MetricConsoleLogs, lister: s, count: countDebugPrints},
		&sourceProbe{kind: domain.MetricUnusedImports, lister: s, count: countUnusedImports},
		&depsProbe{runner: s.runner, command: s.cfg.Scan.DepsCommand},
		newStyleProbe(s, s.cfg.EffectiveStylePatterns()),
		&coverageProbe{summary: s.cfg.EffectiveCoverageSummary()},
	}
}
