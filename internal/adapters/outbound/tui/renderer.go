package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/openkraft/keeper/internal/domain"
)

// ── warm palette ──
var (
	accent  = lipgloss.Color("#D97706") // amber
	fg      = lipgloss.Color("#E8E6E3") // warm light gray
	dim     = lipgloss.Color("#6B7280") // muted gray
	faint   = lipgloss.Color("#3F3F46") // very dim
	success = lipgloss.Color("#22C55E") // green
	danger  = lipgloss.Color("#EF4444") // red
	warning = lipgloss.Color("#F59E0B") // amber-yellow
	info    = lipgloss.Color("#8B949E") // soft blue-gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	gradeColors = map[string]lipgloss.Color{
		"A+": success,
		"A":  success,
		"B":  lipgloss.Color("#A3E635"), // lime
		"C":  warning,
		"D":  lipgloss.Color("#FB923C"), // orange
		"F":  danger,
	}

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	errorTagStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnTagStyle  = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoTagStyle  = lipgloss.NewStyle().Foreground(info)
	fileStyle     = lipgloss.NewStyle().Foreground(dim)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	nameStyle     = lipgloss.NewStyle().Bold(true).Foreground(fg)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// RenderReport formats a finished maintenance run.
func RenderReport(r *domain.MaintenanceReport) string {
	var b strings.Builder

	subtitle := "Nightly Maintenance"
	if r.DryRun {
		subtitle += " (dry run)"
	}
	b.WriteString(scoreBox(subtitle, r.Score, r.Grade()))
	b.WriteString("\n\n")

	renderMetrics(&b, r.Scan)
	b.WriteString("\n  " + separatorLine + "\n\n")

	// ── Fixes ──
	applied := r.AppliedFixes()
	b.WriteString("  " + titleStyle.Render("Fixes") + "  " + dimStyle.Render(fmt.Sprintf("%d files", len(applied))) + "\n\n")
	if len(r.Fixes) == 0 {
		b.WriteString("    " + dimStyle.Render("No safe fixes applied.") + "\n")
	}
	for _, f := range r.Fixes {
		if f.IsError() {
			fmt.Fprintf(&b, "    %s %s\n", errorTagStyle.Render("error"), dimStyle.Render(f.Error))
			continue
		}
		fmt.Fprintf(&b, "    %s %s %s\n", passStyle.Render("✓"), fileStyle.Render(padRight(f.File, 40)),
			dimStyle.Render(fmt.Sprintf("%s ×%d", f.Kind, f.Count)))
	}

	build := passStyle.Render("passed")
	if !r.BuildPassed {
		build = failStyle.Render("failed")
	}
	b.WriteString("\n  " + titleStyle.Render("Build") + "  " + build + "\n")
	if r.PRURL != "" {
		b.WriteString("  " + titleStyle.Render("PR") + "     " + fileStyle.Render(r.PRURL) + "\n")
	}
	b.WriteString("\n")

	renderIssues(&b, "Needs approval", r.RequiresApproval)

	if len(r.Errors) > 0 {
		b.WriteString("\n  " + titleStyle.Render("Errors") + "\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "    %s %s\n", errorTagStyle.Render("✗"), dimStyle.Render(e))
		}
	}

	fmt.Fprintf(&b, "\n  %s\n\n", faintStyle.Render(fmt.Sprintf("run %s · %s", r.RunID, r.Duration().Round(time.Millisecond))))
	return b.String()
}

// RenderScan formats a read-only scan with its categorization and score.
func RenderScan(scan domain.ScanReport, auto, approval []domain.Issue, score int) string {
	var b strings.Builder
	b.WriteString(scoreBox("Health Scan", score, domain.GradeFor(score)))
	b.WriteString("\n\n")

	renderMetrics(&b, scan)
	b.WriteString("\n  " + separatorLine + "\n\n")

	renderIssues(&b, "Auto-fixable", auto)
	b.WriteString("\n")
	renderIssues(&b, "Needs approval", approval)
	b.WriteString("\n")
	return b.String()
}

func scoreBox(subtitle string, score int, grade string) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(gradeColor(grade))
	return boxStyle.Render(headerStyle.Render("keeper") + "\n" + dimStyle.Render(subtitle) + "\n\n" +
		style.Render(fmt.Sprintf("%d / 100", score)) + "  " + style.Render(grade))
}

func renderMetrics(b *strings.Builder, scan domain.ScanReport) {
	b.WriteString("  " + titleStyle.Render("Scan") + "  " + dimStyle.Render(fmt.Sprintf("%d files", scan.FilesScanned)) + "\n\n")
	for _, kind := range domain.CountMetrics {
		n := int(scan.Value(kind))
		icon := passStyle.Render("●")
		if n > 0 {
			icon = warnTagStyle.Render("●")
		}
		fmt.Fprintf(b, "    %s %s %s\n", icon, nameStyle.Render(padRight(string(kind), 20)), dimStyle.Render(fmt.Sprintf("%d", n)))
	}
	cov := int(scan.Coverage)
	fmt.Fprintf(b, "    %s %s %s %s\n", passStyle.Render("●"), nameStyle.Render(padRight("coverage", 20)),
		coloredBar(cov, 20), dimStyle.Render(fmt.Sprintf("%.1f%%", scan.Coverage)))
}

func renderIssues(b *strings.Builder, title string, issues []domain.Issue) {
	sorted := append([]domain.Issue(nil), issues...)
	sortBySeverity(sorted)

	b.WriteString("  " + titleStyle.Render(title) + "  " + dimStyle.Render(fmt.Sprintf("%d", len(sorted))) + "\n\n")
	if len(sorted) == 0 {
		b.WriteString("    " + passStyle.Render("None.") + "\n")
		return
	}
	for _, issue := range sorted {
		fmt.Fprintf(b, "    %s %s %s\n", severityTag(issue.Severity), fileStyle.Render(padRight(string(issue.Kind), 18)),
			dimStyle.Render(fmt.Sprintf("%d", issue.Count)))
		if issue.Suggestion != "" {
			fmt.Fprintf(b, "          %s\n", faintStyle.Render(issue.Suggestion))
		}
	}
}

// RenderDecision formats one routing decision.
func RenderDecision(d domain.RouteDecision) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s %s\n", titleStyle.Render(padRight("route", 8)), nameStyle.Render(d.Target().String()))
	fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render(padRight("tier", 8)), tierStyle(d.Tier).Render(string(d.Tier)))
	fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render(padRight("reason", 8)), reasonStyle(d.Reason).Render(string(d.Reason)))
	fmt.Fprintf(&b, "  %s %s\n\n", dimStyle.Render(padRight("budget", 8)),
		faintStyle.Render(fmt.Sprintf("%d tokens, %s", d.Budget.MaxTokens, d.Budget.Timeout)))
	return b.String()
}

// RenderRoutes formats the route table in tier order.
func RenderRoutes(cfg domain.RouterConfig) string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Route Table"))
	if cfg.LocalOnly {
		b.WriteString("  " + warnTagStyle.Render("local only"))
	}
	b.WriteString("\n  " + faintStyle.Render(strings.Repeat("─", 64)) + "\n\n")

	for _, tier := range domain.Tiers {
		e, ok := cfg.Routes[tier]
		if !ok {
			fmt.Fprintf(&b, "  %s %s\n", tierStyle(tier).Render(padRight(string(tier), 10)), faintStyle.Render("(local default)"))
			continue
		}
		line := fmt.Sprintf("  %s %s", tierStyle(tier).Render(padRight(string(tier), 10)), nameStyle.Render(padRight(e.Primary.String(), 36)))
		if e.HasFallback() {
			line += dimStyle.Render("→ " + e.Fallback.String())
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "\n  %s %s\n", dimStyle.Render(padRight("default", 10)), cfg.LocalDefault.String())

	if len(cfg.AgentOverrides) > 0 {
		agents := make([]string, 0, len(cfg.AgentOverrides))
		for a := range cfg.AgentOverrides {
			agents = append(agents, a)
		}
		sort.Strings(agents)
		b.WriteString("\n  " + titleStyle.Render("Agent overrides") + "\n")
		for _, a := range agents {
			fmt.Fprintf(&b, "    %s %s\n", nameStyle.Render(padRight(a, 16)), cfg.AgentOverrides[a].String())
		}
	}
	b.WriteString("\n")
	return b.String()
}

// RenderHistory formats run history. Entries arrive newest first and are
// printed oldest first with score deltas.
func RenderHistory(entries []domain.RunEntry) string {
	if len(entries) == 0 {
		return "  " + dimStyle.Render("No maintenance runs recorded.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Maintenance History") + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 64)) + "\n\n")

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		hash := e.CommitHash
		if len(hash) > 7 {
			hash = hash[:7]
		}
		if hash == "" {
			hash = "·······"
		}

		scoreStyled := lipgloss.NewStyle().
			Foreground(scoreColor(e.Score)).
			Render(fmt.Sprintf("%d/100", e.Score))

		line := fmt.Sprintf("  %s  %s  %s  %-2s  %s",
			dimStyle.Render(e.Timestamp.Format("2006-01-02")),
			faintStyle.Render(hash),
			scoreStyled,
			e.Grade,
			dimStyle.Render(fmt.Sprintf("%d fixes", e.FixesApplied)),
		)
		if !e.BuildPassed {
			line += "  " + failStyle.Render("build failed")
		}

		if i < len(entries)-1 {
			diff := e.Score - entries[i+1].Score
			if diff > 0 {
				line += "  " + passStyle.Render(fmt.Sprintf("↑%d", diff))
			} else if diff < 0 {
				line += "  " + failStyle.Render(fmt.Sprintf("↓%d", -diff))
			}
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func severityTag(severity string) string {
	switch severity {
	case domain.SeverityError:
		return errorTagStyle.Render("error")
	case domain.SeverityWarning:
		return warnTagStyle.Render("warn ")
	default:
		return infoTagStyle.Render("info ")
	}
}

func sortBySeverity(issues []domain.Issue) {
	order := map[string]int{
		domain.SeverityError:   0,
		domain.SeverityWarning: 1,
		domain.SeverityInfo:    2,
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return order[issues[i].Severity] < order[issues[j].Severity]
	})
}

func tierStyle(t domain.Tier) lipgloss.Style {
	switch t {
	case domain.TierTrivial, domain.TierSimple:
		return passStyle
	case domain.TierModerate:
		return lipgloss.NewStyle().Foreground(warning)
	default:
		return lipgloss.NewStyle().Foreground(danger)
	}
}

func reasonStyle(r domain.RouteReason) lipgloss.Style {
	switch r {
	case domain.ReasonFallback, domain.ReasonLastResort, domain.ReasonLocalModeEnforced:
		return warnTagStyle
	default:
		return dimStyle
	}
}

func coloredBar(score, width int) string {
	filled := max(0, min(score*width/100, width))
	empty := width - filled

	color := scoreColor(score)
	filledStr := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	emptyStr := lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("░", empty))
	return filledStr + emptyStr
}

func scoreColor(score int) lipgloss.Color {
	switch {
	case score >= 80:
		return success
	case score >= 60:
		return lipgloss.Color("#A3E635") // lime
	case score >= 40:
		return warning
	default:
		return danger
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func gradeColor(grade string) lipgloss.Color {
	if c, ok := gradeColors[grade]; ok {
		return c
	}
	return fg
}
