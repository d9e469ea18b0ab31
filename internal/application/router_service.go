package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/domain"
	"github.com/openkraft/keeper/internal/domain/scoring"
)

// ProbeTimeout bounds every local provider health check.
const ProbeTimeout = 3 * time.Second

// RouteTable is a point-in-time copy of the router's configuration.
type RouteTable struct {
	LocalOnly      bool                              `json:"local_only"`
	LocalDefault   domain.RouteTarget                `json:"local_default"`
	Routes         map[domain.Tier]domain.RouteEntry `json:"routes"`
	AgentOverrides map[string]domain.RouteTarget     `json:"agent_overrides,omitempty"`
	Providers      []domain.Provider                 `json:"providers"`
}

// RouterService picks a provider and model for a task. Local inference is
// preferred; remote providers are assumed reachable and never probed.
type RouterService struct {
	mu             sync.RWMutex
	localOnly      bool
	localDefault   domain.RouteTarget
	routes         map[domain.Tier]domain.RouteEntry
	agentOverrides map[string]domain.RouteTarget
	providers      map[string]domain.Provider

	prober   domain.ProviderProber
	recorder domain.DecisionRecorder
	logger   *zap.Logger
}

// NewRouterService builds a router from the built-in tables with cfg layered
// on top: configured providers and routes replace built-ins with the same key.
func NewRouterService(cfg domain.RouterConfig, prober domain.ProviderProber, logger *zap.Logger) *RouterService {
	if logger == nil {
		logger = zap.NewNop()
	}

	providers := make(map[string]domain.Provider)
	for _, p := range domain.DefaultProviders() {
		providers[p.Name] = p
	}
	for _, p := range cfg.Providers {
		providers[p.Name] = p
	}

	routes := domain.DefaultRoutes()
	for tier, entry := range cfg.Routes {
		routes[tier] = entry
	}

	overrides := make(map[string]domain.RouteTarget, len(cfg.AgentOverrides))
	for agent, target := range cfg.AgentOverrides {
		overrides[agent] = target
	}

	localDefault := cfg.LocalDefault
	if localDefault.IsZero() {
		localDefault = domain.DefaultLocalTarget()
	}

	return &RouterService{
		localOnly:      cfg.LocalOnly,
		localDefault:   localDefault,
		routes:         routes,
		agentOverrides: overrides,
		providers:      providers,
		prober:         prober,
		logger:         logger,
	}
}

// WithRecorder attaches an observer for every decision.
func (s *RouterService) WithRecorder(r domain.DecisionRecorder) *RouterService {
	s.recorder = r
	return s
}

// Route runs the decision chain. It never fails: unreachable providers
// degrade to a fallback or the local default.
func (s *RouterService) Route(ctx context.Context, req domain.RouteRequest) domain.RouteDecision {
	d := s.decide(ctx, req)
	d.Budget = domain.BudgetFor(d.Tier)

	s.logger.Debug("route decided",
		zap.String("provider", d.Provider),
		zap.String("model", d.Model),
		zap.String("tier", string(d.Tier)),
		zap.String("reason", string(d.Reason)))
	if s.recorder != nil {
		s.recorder.RecordDecision(d)
	}
	return d
}

func (s *RouterService) decide(ctx context.Context, req domain.RouteRequest) domain.RouteDecision {
	tier := scoring.ClassifyComplexity(req.Task)

	s.mu.RLock()
	localOnly := s.localOnly
	localDefault := s.localDefault
	override, hasOverride := s.agentOverrides[req.Agent]
	entry, hasEntry := s.routes[tier]
	s.mu.RUnlock()

	// 1. Caller preference, honored verbatim.
	if req.PreferredModel != "" {
		provider := req.PreferredProvider
		if provider == "" {
			provider = s.providerForModel(req.PreferredModel, localDefault.Provider)
		}
		return domain.RouteDecision{Provider: provider, Model: req.PreferredModel, Tier: tier, Reason: domain.ReasonUserPreference}
	}

	// 2. Pinned per-agent override.
	if req.Agent != "" && hasOverride {
		return decision(override, tier, domain.ReasonAgentOverride)
	}

	// 3. Route table with liveness-driven degradation.
	if !hasEntry {
		return decision(localDefault, tier, domain.ReasonDefaultFallback)
	}
	if localOnly && !s.isLocal(entry.Primary.Provider) {
		return decision(localDefault, tier, domain.ReasonLocalModeEnforced)
	}
	if s.available(ctx, entry.Primary.Provider) {
		return decision(entry.Primary, tier, domain.ReasonRouteTable)
	}
	if entry.HasFallback() && !(localOnly && !s.isLocal(entry.Fallback.Provider)) && s.available(ctx, entry.Fallback.Provider) {
		return decision(entry.Fallback, tier, domain.ReasonFallback)
	}
	return decision(localDefault, tier, domain.ReasonLastResort)
}

func decision(t domain.RouteTarget, tier domain.Tier, reason domain.RouteReason) domain.RouteDecision {
	return domain.RouteDecision{Provider: t.Provider, Model: t.Model, Tier: tier, Reason: reason}
}

// available probes local providers with a bounded timeout. Remote providers
// are reported available without a network call. Unknown providers are not.
func (s *RouterService) available(ctx context.Context, name string) bool {
	s.mu.RLock()
	p, ok := s.providers[name]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if !p.IsLocal() {
		return true
	}
	if s.prober == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	if err := s.prober.Probe(probeCtx, p); err != nil {
		s.logger.Debug("provider unreachable", zap.String("provider", name), zap.Error(err))
		return false
	}
	return true
}

func (s *RouterService) isLocal(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[name]
	return ok && p.IsLocal()
}

// providerForModel finds the first provider, in name order, listing model.
func (s *RouterService) providerForModel(model, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if s.providers[name].Supports(model) {
			return name
		}
	}
	return fallback
}

// Classify exposes the tier a task would be routed under.
func (s *RouterService) Classify(task string) domain.Tier {
	return scoring.ClassifyComplexity(task)
}

// UpdateRoute replaces the route table entry for tier. The change is visible
// to the next Route call.
func (s *RouterService) UpdateRoute(tier domain.Tier, entry domain.RouteEntry) error {
	if tier.Rank() < 0 {
		return fmt.Errorf("unknown tier %q", tier)
	}
	if entry.Primary.Provider == "" || entry.Primary.Model == "" {
		return fmt.Errorf("route for %s needs a primary provider and model", tier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[entry.Primary.Provider]; !ok {
		return fmt.Errorf("unknown provider %q", entry.Primary.Provider)
	}
	if entry.HasFallback() {
		if _, ok := s.providers[entry.Fallback.Provider]; !ok {
			return fmt.Errorf("unknown fallback provider %q", entry.Fallback.Provider)
		}
	}
	s.routes[tier] = entry
	return nil
}

// RemoveRoute drops the entry for tier; tasks of that tier then go to the
// local default.
func (s *RouterService) RemoveRoute(tier domain.Tier) {
	s.mu.Lock()
	delete(s.routes, tier)
	s.mu.Unlock()
}

// SetAgentOverride pins agent to target. A zero target removes the pin.
func (s *RouterService) SetAgentOverride(agent string, target domain.RouteTarget) error {
	if agent == "" {
		return fmt.Errorf("agent name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if target.IsZero() {
		delete(s.agentOverrides, agent)
		return nil
	}
	if _, ok := s.providers[target.Provider]; !ok {
		return fmt.Errorf("unknown provider %q", target.Provider)
	}
	s.agentOverrides[agent] = target
	return nil
}

func (s *RouterService) SetLocalOnly(on bool) {
	s.mu.Lock()
	s.localOnly = on
	s.mu.Unlock()
}

// Provider looks up a provider by name.
func (s *RouterService) Provider(name string) (domain.Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[name]
	return p, ok
}

// Table returns a copy of the current configuration.
func (s *RouterService) Table() RouteTable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := RouteTable{
		LocalOnly:      s.localOnly,
		LocalDefault:   s.localDefault,
		Routes:         make(map[domain.Tier]domain.RouteEntry, len(s.routes)),
		AgentOverrides: make(map[string]domain.RouteTarget, len(s.agentOverrides)),
	}
	for k, v := range s.routes {
		t.Routes[k] = v
	}
	for k, v := range s.agentOverrides {
		t.AgentOverrides[k] = v
	}
	for _, p := range s.providers {
		t.Providers = append(t.Providers, p)
	}
	sort.Slice(t.Providers, func(i, j int) bool { return t.Providers[i].Name < t.Providers[j].Name })
	return t
}
