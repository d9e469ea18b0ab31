package domain

import (
	"fmt"
	"time"
)

// Tier is a complexity bucket. Tiers are ordered from Trivial to Massive.
type Tier string

const (
	TierTrivial  Tier = "trivial"
	TierSimple   Tier = "simple"
	TierModerate Tier = "moderate"
	TierComplex  Tier = "complex"
	TierMassive  Tier = "massive"
)

// Tiers enumerates all tiers in ascending order.
var Tiers = []Tier{TierTrivial, TierSimple, TierModerate, TierComplex, TierMassive}

// Rank returns the tier's position in Tiers, or -1 if unknown.
func (t Tier) Rank() int {
	for i, v := range Tiers {
		if v == t {
			return i
		}
	}
	return -1
}

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if t.Rank() < 0 {
		return "", fmt.Errorf("unknown tier %q (valid: trivial, simple, moderate, complex, massive)", s)
	}
	return t, nil
}

// TierBudget bounds the work a tier may consume.
type TierBudget struct {
	MaxTokens int           `json:"max_tokens" yaml:"max_tokens"`
	Timeout   time.Duration `json:"timeout"    yaml:"timeout"`
}

var tierBudgets = map[Tier]TierBudget{
	TierTrivial:  {MaxTokens: 512, Timeout: 15 * time.Second},
	TierSimple:   {MaxTokens: 2048, Timeout: 30 * time.Second},
	TierModerate: {MaxTokens: 8192, Timeout: 60 * time.Second},
	TierComplex:  {MaxTokens: 32768, Timeout: 3 * time.Minute},
	TierMassive:  {MaxTokens: 131072, Timeout: 10 * time.Minute},
}

// BudgetFor returns the static budget of t.
func BudgetFor(t Tier) TierBudget { return tierBudgets[t] }

// ProviderKind separates self-hosted inference from paid APIs.
type ProviderKind string

const (
	ProviderLocal  ProviderKind = "local"
	ProviderRemote ProviderKind = "remote"
)

// Provider is a static description of an inference endpoint.
type Provider struct {
	Name       string       `yaml:"name"                  json:"name"`
	Kind       ProviderKind `yaml:"kind"                  json:"kind"`
	Endpoint   string       `yaml:"endpoint"              json:"endpoint"`
	HealthPath string       `yaml:"health_path,omitempty" json:"health_path,omitempty"`
	Models     []string     `yaml:"models,omitempty"      json:"models,omitempty"`
	APIKeyEnv  string       `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
}

func (p Provider) IsLocal() bool { return p.Kind == ProviderLocal }

// HealthURL is the well-known status URL probed for local providers.
func (p Provider) HealthURL() string {
	return p.Endpoint + p.HealthPath
}

// Supports reports whether the provider lists model.
func (p Provider) Supports(model string) bool {
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}

// RouteTarget is a provider/model pair.
type RouteTarget struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model"    json:"model"`
}

func (t RouteTarget) IsZero() bool { return t.Provider == "" && t.Model == "" }

func (t RouteTarget) String() string { return t.Provider + "/" + t.Model }

// RouteEntry is one row of the route table.
type RouteEntry struct {
	Primary  RouteTarget `yaml:"primary"            json:"primary"`
	Fallback RouteTarget `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

func (e RouteEntry) HasFallback() bool { return !e.Fallback.IsZero() }

// RouteReason explains which rule of the decision chain produced a route.
type RouteReason string

const (
	ReasonUserPreference    RouteReason = "user_preference"
	ReasonAgentOverride     RouteReason = "agent_override"
	ReasonDefaultFallback   RouteReason = "default_fallback"
	ReasonLocalModeEnforced RouteReason = "local_mode_enforced"
	ReasonRouteTable        RouteReason = "route_table"
	ReasonFallback          RouteReason = "fallback"
	ReasonLastResort        RouteReason = "last_resort"
)

// RouteRequest is the input of one routing decision.
type RouteRequest struct {
	Task              string `json:"task"`
	Agent             string `json:"agent,omitempty"`
	PreferredModel    string `json:"preferred_model,omitempty"`
	PreferredProvider string `json:"preferred_provider,omitempty"`
}

// RouteDecision is the output of one routing decision.
type RouteDecision struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Tier     Tier        `json:"tier"`
	Reason   RouteReason `json:"reason"`
	Budget   TierBudget  `json:"budget"`
}

func (d RouteDecision) Target() RouteTarget {
	return RouteTarget{Provider: d.Provider, Model: d.Model}
}
