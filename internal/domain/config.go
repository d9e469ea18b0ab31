package domain

import (
	"fmt"
	"time"
)

// ProjectConfig holds project-level configuration loaded from .keeper.yaml.
// Zero values mean "use the built-in default"; read settings through the
// Effective* accessors.
type ProjectConfig struct {
	Maintenance MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty"`
	Scan        ScanConfig        `yaml:"scan,omitempty"        json:"scan,omitempty"`
	Build       BuildConfig       `yaml:"build,omitempty"       json:"build,omitempty"`
	Publish     PublishConfig     `yaml:"publish,omitempty"     json:"publish,omitempty"`
	Metrics     MetricsConfig     `yaml:"metrics,omitempty"     json:"metrics,omitempty"`
	Router      RouterConfig      `yaml:"router,omitempty"      json:"router,omitempty"`
}

// MaintenanceConfig drives the nightly pipeline.
type MaintenanceConfig struct {
	APIBase     string   `yaml:"api_base,omitempty"     json:"api_base,omitempty"`
	DryRun      bool     `yaml:"dry_run,omitempty"      json:"dry_run,omitempty"`
	Channels    []string `yaml:"channels,omitempty"     json:"channels,omitempty"`
	AgentName   string   `yaml:"agent_name,omitempty"   json:"agent_name,omitempty"`
	MinCoverage *float64 `yaml:"min_coverage,omitempty" json:"min_coverage,omitempty"`
}

// ScanConfig tunes the scan probes.
type ScanConfig struct {
	Extensions      []string `yaml:"extensions,omitempty"       json:"extensions,omitempty"`
	ExcludePaths    []string `yaml:"exclude_paths,omitempty"    json:"exclude_paths,omitempty"`
	CoverageSummary string   `yaml:"coverage_summary,omitempty" json:"coverage_summary,omitempty"`
	StylePatterns   []string `yaml:"style_patterns,omitempty"   json:"style_patterns,omitempty"`
	DepsCommand     string   `yaml:"deps_command,omitempty"     json:"deps_command,omitempty"`
}

// BuildConfig lists the commands run to verify the build.
type BuildConfig struct {
	Commands []string      `yaml:"commands,omitempty" json:"commands,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"  json:"timeout,omitempty"`
}

// PublishConfig controls how fixes are proposed for review.
type PublishConfig struct {
	Enabled     *bool  `yaml:"enabled,omitempty"      json:"enabled,omitempty"`
	BaseBranch  string `yaml:"base_branch,omitempty"  json:"base_branch,omitempty"`
	Remote      string `yaml:"remote,omitempty"       json:"remote,omitempty"`
	AuthorName  string `yaml:"author_name,omitempty"  json:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty" json:"author_email,omitempty"`
	TokenEnv    string `yaml:"token_env,omitempty"    json:"token_env,omitempty"`
	// Repository is "owner/name" on the forge; derived from the remote URL when empty.
	Repository string `yaml:"repository,omitempty" json:"repository,omitempty"`
	APIURL     string `yaml:"api_url,omitempty"    json:"api_url,omitempty"`
}

// MetricsConfig configures where run metrics go besides the API.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty" json:"pushgateway_url,omitempty"`
	HistoryDB      string `yaml:"history_db,omitempty"      json:"history_db,omitempty"`
}

// RouterConfig is the static routing policy. Routes and providers given here
// replace the built-in entries with the same key.
type RouterConfig struct {
	LocalOnly      bool                   `yaml:"local_only,omitempty"      json:"local_only,omitempty"`
	LocalDefault   RouteTarget            `yaml:"local_default,omitempty"   json:"local_default,omitempty"`
	Providers      []Provider             `yaml:"providers,omitempty"       json:"providers,omitempty"`
	Routes         map[Tier]RouteEntry    `yaml:"routes,omitempty"          json:"routes,omitempty"`
	AgentOverrides map[string]RouteTarget `yaml:"agent_overrides,omitempty" json:"agent_overrides,omitempty"`
}

const (
	DefaultAgentName    = "maintainer"
	DefaultMinCoverage  = 60.0
	DefaultBuildTimeout = 5 * time.Minute
	DefaultCoverageFile = "coverage/coverage-summary.json"
	DefaultBaseBranch   = "main"
	DefaultRemote       = "origin"
	DefaultTokenEnv     = "GITHUB_TOKEN"
	DefaultHistoryDB    = ".keeper/history.db"
)

// DefaultExtensions are the source files scanned and fixed.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// DefaultStylePatterns flag legacy `var` declarations and loose equality.
var DefaultStylePatterns = []string{
	`\bvar\s+[A-Za-z_$]`,
	`[^=!<>]==[^=]`,
}

// DefaultConfig returns a zero-value config that changes nothing.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{}
}

func (c ProjectConfig) EffectiveAgentName() string {
	if c.Maintenance.AgentName != "" {
		return c.Maintenance.AgentName
	}
	return DefaultAgentName
}

func (c ProjectConfig) EffectiveMinCoverage() float64 {
	if c.Maintenance.MinCoverage != nil {
		return *c.Maintenance.MinCoverage
	}
	return DefaultMinCoverage
}

func (c ProjectConfig) EffectiveExtensions() []string {
	if len(c.Scan.Extensions) > 0 {
		return c.Scan.Extensions
	}
	return DefaultExtensions
}

func (c ProjectConfig) EffectiveStylePatterns() []string {
	if len(c.Scan.StylePatterns) > 0 {
		return c.Scan.StylePatterns
	}
	return DefaultStylePatterns
}

func (c ProjectConfig) EffectiveCoverageSummary() string {
	if c.Scan.CoverageSummary != "" {
		return c.Scan.CoverageSummary
	}
	return DefaultCoverageFile
}

func (c ProjectConfig) EffectiveBuildTimeout() time.Duration {
	if c.Build.Timeout > 0 {
		return c.Build.Timeout
	}
	return DefaultBuildTimeout
}

func (c ProjectConfig) PublishEnabled() bool {
	return c.Publish.Enabled == nil || *c.Publish.Enabled
}

func (c ProjectConfig) EffectiveBaseBranch() string {
	if c.Publish.BaseBranch != "" {
		return c.Publish.BaseBranch
	}
	return DefaultBaseBranch
}

func (c ProjectConfig) EffectiveRemote() string {
	if c.Publish.Remote != "" {
		return c.Publish.Remote
	}
	return DefaultRemote
}

func (c ProjectConfig) EffectiveTokenEnv() string {
	if c.Publish.TokenEnv != "" {
		return c.Publish.TokenEnv
	}
	return DefaultTokenEnv
}

func (c ProjectConfig) EffectiveHistoryDB() string {
	if c.Metrics.HistoryDB != "" {
		return c.Metrics.HistoryDB
	}
	return DefaultHistoryDB
}

// Validate checks the config for invalid values and returns a descriptive error.
func (c ProjectConfig) Validate() error {
	if mc := c.Maintenance.MinCoverage; mc != nil && (*mc < 0 || *mc > 100) {
		return fmt.Errorf("maintenance.min_coverage = %.1f (must be between 0 and 100)", *mc)
	}

	for i, ext := range c.Scan.Extensions {
		if len(ext) < 2 || ext[0] != '.' {
			return fmt.Errorf("scan.extensions[%d] = %q (must start with a dot)", i, ext)
		}
	}

	if c.Build.Timeout < 0 {
		return fmt.Errorf("build.timeout must not be negative")
	}

	return c.Router.validate()
}

func (r RouterConfig) validate() error {
	names := make(map[string]bool)
	for _, p := range DefaultProviders() {
		names[p.Name] = true
	}
	for i, p := range r.Providers {
		if p.Name == "" {
			return fmt.Errorf("router.providers[%d].name must not be empty", i)
		}
		if p.Kind != ProviderLocal && p.Kind != ProviderRemote {
			return fmt.Errorf("router.providers[%d].kind = %q (valid: local, remote)", i, p.Kind)
		}
		if p.Kind == ProviderLocal && p.Endpoint == "" {
			return fmt.Errorf("router.providers[%d]: local provider %q needs an endpoint", i, p.Name)
		}
		names[p.Name] = true
	}

	for tier, entry := range r.Routes {
		if tier.Rank() < 0 {
			return fmt.Errorf("unknown tier %q in router.routes", tier)
		}
		if !names[entry.Primary.Provider] {
			return fmt.Errorf("router.routes[%s]: unknown provider %q", tier, entry.Primary.Provider)
		}
		if entry.HasFallback() && !names[entry.Fallback.Provider] {
			return fmt.Errorf("router.routes[%s]: unknown fallback provider %q", tier, entry.Fallback.Provider)
		}
	}

	for agent, target := range r.AgentOverrides {
		if !names[target.Provider] {
			return fmt.Errorf("router.agent_overrides[%s]: unknown provider %q", agent, target.Provider)
		}
	}

	if !r.LocalDefault.IsZero() && !names[r.LocalDefault.Provider] {
		return fmt.Errorf("router.local_default: unknown provider %q", r.LocalDefault.Provider)
	}

	return nil
}

// DefaultProviders returns the built-in provider catalog.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Name:       "ollama",
			Kind:       ProviderLocal,
			Endpoint:   "http://localhost:11434",
			HealthPath: "/api/tags",
			Models:     []string{"llama3.2:3b", "qwen2.5:7b", "qwen2.5-coder:14b"},
		},
		{
			Name:       "lmstudio",
			Kind:       ProviderLocal,
			Endpoint:   "http://localhost:1234",
			HealthPath: "/v1/models",
			Models:     []string{"qwen2.5-coder-32b-instruct"},
		},
		{
			Name:      "anthropic",
			Kind:      ProviderRemote,
			Endpoint:  "https://api.anthropic.com",
			Models:    []string{"claude-3-5-haiku-latest", "claude-sonnet-4-0"},
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		{
			Name:      "openai",
			Kind:      ProviderRemote,
			Endpoint:  "https://api.openai.com/v1",
			Models:    []string{"gpt-4o-mini", "gpt-4o"},
			APIKeyEnv: "OPENAI_API_KEY",
		},
		{
			Name:      "google",
			Kind:      ProviderRemote,
			Endpoint:  "https://generativelanguage.googleapis.com",
			Models:    []string{"gemini-1.5-pro", "gemini-1.5-flash"},
			APIKeyEnv: "GEMINI_API_KEY",
		},
	}
}

// DefaultLocalTarget is the cheapest local model, used whenever the chain
// has to degrade.
func DefaultLocalTarget() RouteTarget {
	return RouteTarget{Provider: "ollama", Model: "llama3.2:3b"}
}

// DefaultRoutes returns the built-in route table.
func DefaultRoutes() map[Tier]RouteEntry {
	return map[Tier]RouteEntry{
		TierTrivial: {
			Primary: RouteTarget{Provider: "ollama", Model: "llama3.2:3b"},
		},
		TierSimple: {
			Primary:  RouteTarget{Provider: "ollama", Model: "qwen2.5:7b"},
			Fallback: RouteTarget{Provider: "lmstudio", Model: "qwen2.5-coder-32b-instruct"},
		},
		TierModerate: {
			Primary:  RouteTarget{Provider: "ollama", Model: "qwen2.5-coder:14b"},
			Fallback: RouteTarget{Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
		},
		TierComplex: {
			Primary:  RouteTarget{Provider: "anthropic", Model: "claude-sonnet-4-0"},
			Fallback: RouteTarget{Provider: "openai", Model: "gpt-4o"},
		},
		TierMassive: {
			Primary:  RouteTarget{Provider: "google", Model: "gemini-1.5-pro"},
			Fallback: RouteTarget{Provider: "anthropic", Model: "claude-sonnet-4-0"},
		},
	}
}
