package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openkraft/keeper/internal/adapters/outbound/jsast"
	"github.com/openkraft/keeper/internal/adapters/outbound/shell"
	"github.com/openkraft/keeper/internal/domain"
	"github.com/openkraft/keeper/internal/domain/remedy"
)

const maxReadSize = 1 << 20 // files above 1MB are generated or minified

// counter measures one file. rel is the slash-separated path under the root.
type counter func(ctx context.Context, rel string, content []byte) (int, error)

var (
	countAnyTypes    counter = jsast.CountAnyTypes
	countDebugPrints counter = jsast.CountDebugPrints
)

func countUnusedImports(_ context.Context, _ string, content []byte) (int, error) {
	return remedy.CountUnusedImports(string(content)), nil
}

// forEachSource reads every listed source file and hands its content to fn.
// Unreadable and oversized files are skipped.
func forEachSource(ctx context.Context, lister domain.SourceLister, root string, fn func(rel string, content []byte)) error {
	files, err := lister.ListSources(ctx, root)
	if err != nil {
		return err
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		info, err := os.Stat(path)
		if err != nil || info.Size() > maxReadSize {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		fn(f, data)
	}
	return nil
}

// sourceProbe sums a per-file count over all source files. A file that
// cannot be measured fails the probe.
type sourceProbe struct {
	kind   domain.MetricKind
	lister domain.SourceLister
	count  counter
}

func (p *sourceProbe) Kind() domain.MetricKind { return p.kind }

func (p *sourceProbe) Measure(ctx context.Context, root string) (float64, error) {
	total := 0
	var errs []error
	err := forEachSource(ctx, p.lister, root, func(rel string, content []byte) {
		n, err := p.count(ctx, rel, content)
		if err != nil {
			errs = append(errs, err)
			return
		}
		total += n
	})
	return float64(total), errors.Join(append(errs, err)...)
}

// styleProbe counts lines matching any configured convention pattern. A line
// matching several patterns counts once per pattern.
type styleProbe struct {
	lister   domain.SourceLister
	patterns []*regexp.Regexp
	err      error
}

func newStyleProbe(lister domain.SourceLister, patterns []string) *styleProbe {
	p := &styleProbe{lister: lister}
	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			p.err = errors.Join(p.err, fmt.Errorf("style pattern %q: %w", raw, err))
			continue
		}
		p.patterns = append(p.patterns, re)
	}
	return p
}

func (p *styleProbe) Kind() domain.MetricKind { return domain.MetricStyleViolations }

func (p *styleProbe) Measure(ctx context.Context, root string) (float64, error) {
	total := 0
	err := forEachSource(ctx, p.lister, root, func(_ string, content []byte) {
		for _, line := range strings.Split(string(content), "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
				continue
			}
			for _, re := range p.patterns {
				if re.MatchString(line) {
					total++
				}
			}
		}
	})
	return float64(total), errors.Join(p.err, err)
}

// coverageProbe reads the line percentage from an istanbul json-summary file.
type coverageProbe struct {
	summary string
}

type coverageSummary struct {
	Total struct {
		Lines struct {
			Pct json.Number `json:"pct"`
		} `json:"lines"`
	} `json:"total"`
}

func (p *coverageProbe) Kind() domain.MetricKind { return domain.MetricCoverage }

func (p *coverageProbe) Measure(_ context.Context, root string) (float64, error) {
	path := p.summary
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading coverage summary: %w", err)
	}

	var summary coverageSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return 0, fmt.Errorf("parsing coverage summary: %w", err)
	}
	// istanbul writes "Unknown" when no lines were instrumented.
	pct, err := summary.Total.Lines.Pct.Float64()
	if err != nil {
		return 0, fmt.Errorf("coverage pct %q: %w", summary.Total.Lines.Pct, err)
	}
	return pct, nil
}

// depsProbe counts dependencies with a newer version available. Without an
// explicit command it asks npm for package.json projects and the go tool for
// go.mod projects.
type depsProbe struct {
	runner  shell.Runner
	command string
}

func (p *depsProbe) Kind() domain.MetricKind { return domain.MetricOutdatedDeps }

func (p *depsProbe) Measure(ctx context.Context, root string) (float64, error) {
	switch {
	case p.command != "":
		fields := strings.Fields(p.command)
		out, err := p.runner.Output(ctx, root, fields[0], fields[1:]...)
		return countOutdated(out, err)
	case fileExists(filepath.Join(root, "package.json")):
		out, err := p.runner.Output(ctx, root, "npm", "outdated", "--json")
		return countOutdated(out, err)
	case fileExists(filepath.Join(root, "go.mod")):
		out, err := p.runner.Output(ctx, root, "go", "list", "-m", "-u", "-json", "all")
		if err != nil {
			return 0, err
		}
		n, err := countGoUpdates(out)
		return float64(n), err
	default:
		return 0, fmt.Errorf("no dependency manifest in %s", root)
	}
}

// countOutdated parses npm-style output: a JSON object keyed by package name.
// npm exits 1 when anything is outdated, so output is trusted whenever it
// parses.
func countOutdated(out []byte, runErr error) (float64, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return 0, runErr
	}
	var outdated map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &outdated); err != nil {
		return 0, errors.Join(runErr, fmt.Errorf("parsing outdated output: %w", err))
	}
	return float64(len(outdated)), nil
}

// countGoUpdates counts modules in a `go list -m -u -json` stream that have
// an Update, skipping the main module.
func countGoUpdates(out []byte) (int, error) {
	type module struct {
		Path   string
		Main   bool
		Update *struct{ Version string }
	}

	n := 0
	dec := json.NewDecoder(bytes.NewReader(out))
	for {
		var m module
		if err := dec.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("parsing go list output: %w", err)
		}
		if !m.Main && m.Update != nil {
			n++
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
