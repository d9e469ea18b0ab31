package domain

import (
	"time"
)

// MetricKind names a single measurement taken during a scan.
type MetricKind string

const (
	MetricAnyTypes        MetricKind = "any_types"
	MetricConsoleLogs     MetricKind = "console_logs"
	MetricUnusedImports   MetricKind = "unused_imports"
	MetricOutdatedDeps    MetricKind = "outdated_deps"
	MetricStyleViolations MetricKind = "style_violations"
	MetricCoverage        MetricKind = "coverage"
)

// CountMetrics lists the metrics that count defects, in report order.
var CountMetrics = []MetricKind{
	MetricAnyTypes,
	MetricConsoleLogs,
	MetricUnusedImports,
	MetricOutdatedDeps,
	MetricStyleViolations,
}

// ScanReport holds the result of probing a project once. It is not modified
// after the scan service returns it.
type ScanReport struct {
	AnyTypes        int       `json:"any_types"`
	ConsoleLogs     int       `json:"console_logs"`
	UnusedImports   int       `json:"unused_imports"`
	OutdatedDeps    int       `json:"outdated_deps"`
	StyleViolations int       `json:"style_violations"`
	Coverage        float64   `json:"coverage"`
	FilesScanned    int       `json:"files_scanned"`
	ScannedAt       time.Time `json:"scanned_at"`
}

// Value returns the metric as a float regardless of its native type.
// Unknown kinds report zero.
func (s ScanReport) Value(kind MetricKind) float64 {
	switch kind {
	case MetricAnyTypes:
		return float64(s.AnyTypes)
	case MetricConsoleLogs:
		return float64(s.ConsoleLogs)
	case MetricUnusedImports:
		return float64(s.UnusedImports)
	case MetricOutdatedDeps:
		return float64(s.OutdatedDeps)
	case MetricStyleViolations:
		return float64(s.StyleViolations)
	case MetricCoverage:
		return s.Coverage
	default:
		return 0
	}
}

// WithValue returns a copy of s with the given metric set. Negative values are
// stored as zero; coverage is capped at 100.
func (s ScanReport) WithValue(kind MetricKind, v float64) ScanReport {
	if v < 0 {
		v = 0
	}
	n := int(v)
	switch kind {
	case MetricAnyTypes:
		s.AnyTypes = n
	case MetricConsoleLogs:
		s.ConsoleLogs = n
	case MetricUnusedImports:
		s.UnusedImports = n
	case MetricOutdatedDeps:
		s.OutdatedDeps = n
	case MetricStyleViolations:
		s.StyleViolations = n
	case MetricCoverage:
		s.Coverage = min(v, 100)
	}
	return s
}

// IssueKind identifies a class of defect derived from a scan.
type IssueKind string

const (
	IssueAnyTypes        IssueKind = "any_types"
	IssueConsoleLogs     IssueKind = "console_logs"
	IssueUnusedImports   IssueKind = "unused_imports"
	IssueOutdatedDeps    IssueKind = "outdated_deps"
	IssueStyleViolations IssueKind = "style_violations"
	IssueLowCoverage     IssueKind = "low_coverage"
)

// Issue represents a problem found during a scan.
type Issue struct {
	Kind       IssueKind `json:"kind"`
	Count      int       `json:"count"`
	Severity   string    `json:"severity"`
	Suggestion string    `json:"suggestion,omitempty"`
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// MaintenanceReport aggregates everything a maintenance run did. It is created
// at run start, filled in stage by stage, and finalized with CompletedAt.
type MaintenanceReport struct {
	RunID            string     `json:"run_id"`
	ProjectPath      string     `json:"project_path"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      time.Time  `json:"completed_at"`
	DryRun           bool       `json:"dry_run"`
	Scan             ScanReport `json:"scan"`
	AutoFixable      []Issue    `json:"auto_fixable"`
	RequiresApproval []Issue    `json:"requires_approval"`
	Fixes            []Fix      `json:"fixes"`
	BuildPassed      bool       `json:"build_passed"`
	Score            int        `json:"score"`
	PRURL            string     `json:"pr_url,omitempty"`
	Errors           []string   `json:"errors"`
}

func (r *MaintenanceReport) Grade() string { return GradeFor(r.Score) }

// AddError appends a report-level error message.
func (r *MaintenanceReport) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AppliedFixes returns the fixes that changed a file, excluding error entries.
func (r *MaintenanceReport) AppliedFixes() []Fix {
	return RealFixes(r.Fixes)
}

func (r *MaintenanceReport) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func GradeFor(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

func BadgeColor(score int) string {
	switch {
	case score >= 90:
		return "brightgreen"
	case score >= 80:
		return "green"
	case score >= 70:
		return "yellow"
	case score >= 60:
		return "orange"
	case score >= 50:
		return "red"
	default:
		return "critical"
	}
}

// RunEntry is the persisted summary of one maintenance run.
type RunEntry struct {
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	CommitHash    string    `json:"commit_hash,omitempty"`
	Score         int       `json:"score"`
	Grade         string    `json:"grade"`
	FixesApplied  int       `json:"fixes_applied"`
	NeedsApproval int       `json:"needs_approval"`
	BuildPassed   bool      `json:"build_passed"`
	PRURL         string    `json:"pr_url,omitempty"`
	Errors        int       `json:"errors"`
}

// MetricsSnapshot is what a run hands to metrics collaborators.
type MetricsSnapshot struct {
	RunID         string     `json:"run_id"`
	Date          string     `json:"date"`
	Scan          ScanReport `json:"scan"`
	Score         int        `json:"score"`
	FixesApplied  int        `json:"fixes_applied"`
	NeedsApproval int        `json:"needs_approval"`
	BuildPassed   bool       `json:"build_passed"`
}

// SnapshotOf builds the metrics payload for a report.
func SnapshotOf(r *MaintenanceReport) MetricsSnapshot {
	return MetricsSnapshot{
		RunID:         r.RunID,
		Date:          r.StartedAt.Format("2006-01-02"),
		Scan:          r.Scan,
		Score:         r.Score,
		FixesApplied:  len(r.AppliedFixes()),
		NeedsApproval: len(r.RequiresApproval),
		BuildPassed:   r.BuildPassed,
	}
}
