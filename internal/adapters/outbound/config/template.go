package config

import (
	"fmt"
	"strings"

	"github.com/openkraft/keeper/internal/domain"
)

// Template renders a commented starter .keeper.yaml. Every value shown is
// the built-in default, so the file changes nothing until edited.
func Template() string {
	var b strings.Builder
	b.WriteString("# keeper configuration\n\n")

	b.WriteString("maintenance:\n")
	b.WriteString("  # api_base: https://ops.example.com\n")
	b.WriteString("  dry_run: false\n")
	b.WriteString("  channels: []\n")
	fmt.Fprintf(&b, "  agent_name: %s\n", domain.DefaultAgentName)
	fmt.Fprintf(&b, "  min_coverage: %.0f\n\n", domain.DefaultMinCoverage)

	b.WriteString("scan:\n")
	fmt.Fprintf(&b, "  extensions: [%s]\n", strings.Join(domain.DefaultExtensions, ", "))
	b.WriteString("  # exclude_paths: [generated]\n")
	fmt.Fprintf(&b, "  coverage_summary: %s\n", domain.DefaultCoverageFile)
	b.WriteString("  # deps_command: npm outdated --json\n\n")

	b.WriteString("build:\n")
	b.WriteString("  # commands: [npx tsc --noEmit, npm run build]\n")
	fmt.Fprintf(&b, "  timeout: %s\n\n", domain.DefaultBuildTimeout)

	b.WriteString("publish:\n")
	fmt.Fprintf(&b, "  base_branch: %s\n", domain.DefaultBaseBranch)
	fmt.Fprintf(&b, "  remote: %s\n", domain.DefaultRemote)
	fmt.Fprintf(&b, "  token_env: %s\n\n", domain.DefaultTokenEnv)

	b.WriteString("metrics:\n")
	b.WriteString("  # pushgateway_url: http://localhost:9091\n")
	fmt.Fprintf(&b, "  history_db: %s\n\n", domain.DefaultHistoryDB)

	b.WriteString("router:\n")
	b.WriteString("  local_only: false\n")
	def := domain.DefaultLocalTarget()
	fmt.Fprintf(&b, "  local_default: {provider: %s, model: %q}\n", def.Provider, def.Model)
	b.WriteString("  routes:\n")
	routes := domain.DefaultRoutes()
	for _, tier := range domain.Tiers {
		e := routes[tier]
		fmt.Fprintf(&b, "    %s:\n      primary: {provider: %s, model: %q}\n", tier, e.Primary.Provider, e.Primary.Model)
		if e.HasFallback() {
			fmt.Fprintf(&b, "      fallback: {provider: %s, model: %q}\n", e.Fallback.Provider, e.Fallback.Model)
		}
	}
	b.WriteString("  # agent_overrides:\n  #   reviewer: {provider: anthropic, model: claude-sonnet-4-0}\n")
	return b.String()
}
