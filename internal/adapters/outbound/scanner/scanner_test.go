package scanner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openkraft/keeper/internal/adapters/outbound/scanner"
	"github.com/openkraft/keeper/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDir = "../../../../testdata/webapp"

type fakeRunner struct {
	out  string
	err  error
	dir  string
	args []string
}

func (f *fakeRunner) Output(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.dir = dir
	f.args = append([]string{name}, args...)
	return []byte(f.out), f.err
}

func measure(t *testing.T, s *scanner.FileScanner, root string) map[domain.MetricKind]float64 {
	t.Helper()
	out := make(map[domain.MetricKind]float64)
	for _, p := range s.Probes() {
		v, err := p.Measure(context.Background(), root)
		if err == nil {
			out[p.Kind()] = v
		}
	}
	return out
}

func TestListSources_Fixture(t *testing.T) {
	s := scanner.New(domain.DefaultConfig())
	files, err := s.ListSources(context.Background(), fixtureDir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"src/api.ts",
		"src/components/Button.tsx",
		"src/format.ts",
		"src/legacy.js",
	}, files)
}

func TestListSources_SkipsDependencyAndBuildDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", "export const a = 1;\n")
	writeFile(t, root, "node_modules/lib/index.js", "console.log(1);\n")
	writeFile(t, root, "dist/app.js", "console.log(1);\n")
	writeFile(t, root, ".next/server.js", "console.log(1);\n")
	writeFile(t, root, "types/global.d.ts", "declare const x: any;\n")
	writeFile(t, root, "README.md", "# readme\n")

	files, err := scanner.New(domain.DefaultConfig()).ListSources(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.ts"}, files)
}

func TestListSources_ExcludePaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", "")
	writeFile(t, root, "src/generated/api.ts", "")
	writeFile(t, root, "scripts/seed.js", "")

	cfg := domain.ProjectConfig{Scan: domain.ScanConfig{ExcludePaths: []string{"src/generated/", "scripts"}}}
	files, err := scanner.New(cfg).ListSources(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.ts"}, files)
}

func TestProbes_Fixture(t *testing.T) {
	runner := &fakeRunner{out: `{"react": {"current": "18.2.0", "latest": "19.1.0"}}`, err: errors.New("npm: exit status 1")}
	s := scanner.New(domain.DefaultConfig()).WithRunner(runner)

	got := measure(t, s, fixtureDir)

	assert.InDelta(t, 2, got[domain.MetricAnyTypes], 0.001)
	assert.InDelta(t, 2, got[domain.MetricConsoleLogs], 0.001)
	assert.InDelta(t, 2, got[domain.MetricUnusedImports], 0.001)
	assert.InDelta(t, 2, got[domain.MetricStyleViolations], 0.001)
	assert.InDelta(t, 42.5, got[domain.MetricCoverage], 0.001)
	assert.InDelta(t, 1, got[domain.MetricOutdatedDeps], 0.001)
	assert.Equal(t, []string{"npm", "outdated", "--json"}, runner.args)
}

func TestProbes_OrderMatchesMetrics(t *testing.T) {
	var kinds []domain.MetricKind
	for _, p := range scanner.New(domain.DefaultConfig()).Probes() {
		kinds = append(kinds, p.Kind())
	}
	assert.ElementsMatch(t, append(append([]domain.MetricKind{}, domain.CountMetrics...), domain.MetricCoverage), kinds)
}

func TestCoverageProbe_MissingSummary(t *testing.T) {
	s := scanner.New(domain.DefaultConfig())
	for _, p := range s.Probes() {
		if p.Kind() != domain.MetricCoverage {
			continue
		}
		_, err := p.Measure(context.Background(), t.TempDir())
		assert.Error(t, err)
	}
}

func TestCoverageProbe_UnknownPct(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "coverage/coverage-summary.json", `{"total":{"lines":{"pct":"Unknown"}}}`)
	for _, p := range scanner.New(domain.DefaultConfig()).Probes() {
		if p.Kind() == domain.MetricCoverage {
			_, err := p.Measure(context.Background(), root)
			assert.Error(t, err)
		}
	}
}

func TestDepsProbe_GoModules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/x\n")
	runner := &fakeRunner{out: `{"Path":"example.com/x","Main":true}
{"Path":"github.com/a/b","Version":"v1.0.0","Update":{"Version":"v1.2.0"}}
{"Path":"github.com/c/d","Version":"v0.3.0"}
{"Path":"golang.org/x/net","Version":"v0.1.0","Update":{"Version":"v0.2.0"}}
`}
	got := measure(t, scanner.New(domain.DefaultConfig()).WithRunner(runner), root)

	assert.InDelta(t, 2, got[domain.MetricOutdatedDeps], 0.001)
	assert.Equal(t, []string{"go", "list", "-m", "-u", "-json", "all"}, runner.args)
	assert.Equal(t, root, runner.dir)
}

func TestDepsProbe_ConfiguredCommand(t *testing.T) {
	runner := &fakeRunner{out: `{"left-pad": {}, "lodash": {}, "chalk": {}}`}
	cfg := domain.ProjectConfig{Scan: domain.ScanConfig{DepsCommand: "pnpm outdated --format json"}}

	got := measure(t, scanner.New(cfg).WithRunner(runner), t.TempDir())

	assert.InDelta(t, 3, got[domain.MetricOutdatedDeps], 0.001)
	assert.Equal(t, "pnpm", runner.args[0])
}

func TestDepsProbe_FailureWithoutOutput(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")
	runner := &fakeRunner{err: errors.New("npm: command not found")}

	got := measure(t, scanner.New(domain.DefaultConfig()).WithRunner(runner), root)

	_, ok := got[domain.MetricOutdatedDeps]
	assert.False(t, ok)
}

func TestStyleProbe_InvalidPattern(t *testing.T) {
	cfg := domain.ProjectConfig{Scan: domain.ScanConfig{StylePatterns: []string{"(unclosed", `\bvar\b`}}}
	root := t.TempDir()
	writeFile(t, root, "a.js", "var x = 1;\n// var in a comment\n")

	for _, p := range scanner.New(cfg).Probes() {
		if p.Kind() != domain.MetricStyleViolations {
			continue
		}
		v, err := p.Measure(context.Background(), root)
		assert.Error(t, err)
		assert.InDelta(t, 1, v, 0.001)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
