package domain

import (
	"fmt"
	"math"
)

// FixPolicy says whether an issue kind may be remediated without a human.
type FixPolicy string

const (
	PolicyAutoFix         FixPolicy = "auto_fix"
	PolicyRequireApproval FixPolicy = "require_approval"
)

// fixPolicies is the closed table of remediation policy per issue kind.
// Anything touching dependencies or type-level correctness needs approval.
var fixPolicies = map[IssueKind]FixPolicy{
	IssueConsoleLogs:     PolicyAutoFix,
	IssueUnusedImports:   PolicyAutoFix,
	IssueAnyTypes:        PolicyRequireApproval,
	IssueOutdatedDeps:    PolicyRequireApproval,
	IssueStyleViolations: PolicyRequireApproval,
	IssueLowCoverage:     PolicyRequireApproval,
}

// PolicyFor returns the policy for kind. Unknown kinds require approval.
func PolicyFor(kind IssueKind) FixPolicy {
	if p, ok := fixPolicies[kind]; ok {
		return p
	}
	return PolicyRequireApproval
}

// severityThresholds is the count at which each kind starts to matter.
var severityThresholds = map[IssueKind]int{
	IssueAnyTypes:        10,
	IssueConsoleLogs:     10,
	IssueUnusedImports:   10,
	IssueOutdatedDeps:    5,
	IssueStyleViolations: 20,
}

var suggestions = map[IssueKind]string{
	IssueAnyTypes:        "Replace `any` with concrete types or `unknown` plus narrowing",
	IssueConsoleLogs:     "Remove debug prints or route them through the application logger",
	IssueUnusedImports:   "Delete imports that are never referenced",
	IssueOutdatedDeps:    "Review changelogs and upgrade outdated dependencies",
	IssueStyleViolations: "Align code with the project's style conventions",
	IssueLowCoverage:     "Add tests for untested code paths",
}

// DetectIssues derives issues from a scan. Every non-zero count metric yields
// one issue; coverage below minCoverage yields a low_coverage issue.
func DetectIssues(scan ScanReport, minCoverage float64) []Issue {
	var issues []Issue
	for _, m := range CountMetrics {
		count := int(scan.Value(m))
		if count <= 0 {
			continue
		}
		kind := IssueKind(m)
		issues = append(issues, Issue{
			Kind:       kind,
			Count:      count,
			Severity:   countSeverity(count, severityThresholds[kind]),
			Suggestion: suggestions[kind],
		})
	}

	if scan.Coverage < minCoverage {
		gap := minCoverage - scan.Coverage
		sev := SeverityInfo
		switch {
		case gap >= minCoverage/2:
			sev = SeverityError
		case gap >= minCoverage/4:
			sev = SeverityWarning
		}
		issues = append(issues, Issue{
			Kind:       IssueLowCoverage,
			Count:      int(math.Round(scan.Coverage)),
			Severity:   sev,
			Suggestion: fmt.Sprintf("%s (target %.0f%%)", suggestions[IssueLowCoverage], minCoverage),
		})
	}

	return issues
}

// Categorize partitions issues by fix policy. The result depends only on each
// issue's kind, so the two lists never share a kind.
func Categorize(issues []Issue) (autoFixable, requiresApproval []Issue) {
	for _, iss := range issues {
		if PolicyFor(iss.Kind) == PolicyAutoFix {
			autoFixable = append(autoFixable, iss)
		} else {
			requiresApproval = append(requiresApproval, iss)
		}
	}
	return autoFixable, requiresApproval
}

// countSeverity grades a count against a threshold. ≥3x = error, ≥1.5x =
// warning, else info.
func countSeverity(actual, threshold int) string {
	if threshold <= 0 {
		return SeverityWarning
	}
	ratio := float64(actual) / float64(threshold)
	switch {
	case ratio >= 3.0:
		return SeverityError
	case ratio >= 1.5:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
