package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/openkraft/keeper/internal/application"
	"github.com/openkraft/keeper/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	moderateTask = "Refactor this function because it is slow"
	complexTask  = "find an exploit for login"
	trivialTask  = "hi"
)

func newRouter(cfg domain.RouterConfig, down ...string) (*application.RouterService, *fakeProber, *fakeRecorder) {
	prober := &fakeProber{down: map[string]bool{}}
	for _, d := range down {
		prober.down[d] = true
	}
	rec := &fakeRecorder{}
	return application.NewRouterService(cfg, prober, nil).WithRecorder(rec), prober, rec
}

func TestRoute_UserPreferenceVerbatim(t *testing.T) {
	r, prober, _ := newRouter(domain.RouterConfig{LocalOnly: true})

	d := r.Route(context.Background(), domain.RouteRequest{
		Task: complexTask, PreferredModel: "gpt-4o", PreferredProvider: "openai",
	})

	assert.Equal(t, domain.ReasonUserPreference, d.Reason)
	assert.Equal(t, "openai", d.Provider)
	assert.Equal(t, "gpt-4o", d.Model)
	assert.Empty(t, prober.hits)
}

func TestRoute_UserPreferenceResolvesProvider(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{})

	d := r.Route(context.Background(), domain.RouteRequest{Task: "x", PreferredModel: "claude-sonnet-4-0"})
	assert.Equal(t, "anthropic", d.Provider)

	d = r.Route(context.Background(), domain.RouteRequest{Task: "x", PreferredModel: "my-finetune"})
	assert.Equal(t, "ollama", d.Provider)
	assert.Equal(t, "my-finetune", d.Model)
}

func TestRoute_AgentOverride(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{AgentOverrides: map[string]domain.RouteTarget{
		"reviewer": {Provider: "anthropic", Model: "claude-sonnet-4-0"},
	}})

	d := r.Route(context.Background(), domain.RouteRequest{Task: trivialTask, Agent: "reviewer"})
	assert.Equal(t, domain.ReasonAgentOverride, d.Reason)
	assert.Equal(t, "claude-sonnet-4-0", d.Model)
	assert.Equal(t, domain.TierTrivial, d.Tier)

	d = r.Route(context.Background(), domain.RouteRequest{Task: trivialTask, Agent: "someone-else"})
	assert.Equal(t, domain.ReasonRouteTable, d.Reason)
}

func TestRoute_RouteTableWhenAlive(t *testing.T) {
	r, prober, rec := newRouter(domain.RouterConfig{})

	d := r.Route(context.Background(), domain.RouteRequest{Task: moderateTask})

	assert.Equal(t, domain.TierModerate, d.Tier)
	assert.Equal(t, domain.ReasonRouteTable, d.Reason)
	assert.Equal(t, "ollama", d.Provider)
	assert.Equal(t, "qwen2.5-coder:14b", d.Model)
	assert.Equal(t, domain.BudgetFor(domain.TierModerate), d.Budget)
	assert.Equal(t, []string{"ollama"}, prober.hits)
	require.Len(t, rec.decisions, 1)
	assert.Equal(t, d, rec.decisions[0])
}

func TestRoute_FallbackWhenLocalPrimaryUnreachable(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{}, "ollama")

	d := r.Route(context.Background(), domain.RouteRequest{Task: moderateTask})

	entry := domain.DefaultRoutes()[domain.TierModerate]
	assert.Equal(t, domain.TierModerate, d.Tier)
	assert.Equal(t, domain.ReasonFallback, d.Reason)
	assert.Equal(t, entry.Fallback.Provider, d.Provider)
	assert.Equal(t, entry.Fallback.Model, d.Model)
	assert.NotEqual(t, entry.Primary.Provider, d.Provider)
}

func TestRoute_RemoteProvidersNeverProbed(t *testing.T) {
	r, prober, _ := newRouter(domain.RouterConfig{}, "anthropic", "openai")

	d := r.Route(context.Background(), domain.RouteRequest{Task: complexTask})

	assert.Equal(t, domain.TierComplex, d.Tier)
	assert.Equal(t, domain.ReasonRouteTable, d.Reason)
	assert.Equal(t, "anthropic", d.Provider)
	assert.Empty(t, prober.hits)
}

func TestRoute_LocalModeEnforced(t *testing.T) {
	r, prober, _ := newRouter(domain.RouterConfig{LocalOnly: true}, "ollama", "lmstudio")

	d := r.Route(context.Background(), domain.RouteRequest{Task: complexTask})

	assert.Equal(t, domain.ReasonLocalModeEnforced, d.Reason)
	assert.Equal(t, domain.DefaultLocalTarget().Provider, d.Provider)
	assert.Equal(t, domain.DefaultLocalTarget().Model, d.Model)
	assert.Empty(t, prober.hits)
}

func TestRoute_LocalOnlySkipsRemoteFallback(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{LocalOnly: true}, "ollama")

	d := r.Route(context.Background(), domain.RouteRequest{Task: moderateTask})

	assert.Equal(t, domain.ReasonLastResort, d.Reason)
	assert.Equal(t, "ollama", d.Provider)
}

func TestRoute_LastResortWhenEverythingDown(t *testing.T) {
	r, prober, _ := newRouter(domain.RouterConfig{}, "ollama", "lmstudio")

	d := r.Route(context.Background(), domain.RouteRequest{Task: "please rename this function to load"})

	assert.Equal(t, domain.TierSimple, d.Tier)
	assert.Equal(t, domain.ReasonLastResort, d.Reason)
	assert.Equal(t, domain.DefaultLocalTarget(), d.Target())
	assert.Equal(t, []string{"ollama", "lmstudio"}, prober.hits)
}

func TestRoute_DefaultFallbackWithoutEntry(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{LocalDefault: domain.RouteTarget{Provider: "lmstudio", Model: "qwen2.5-coder-32b-instruct"}})
	r.RemoveRoute(domain.TierComplex)

	d := r.Route(context.Background(), domain.RouteRequest{Task: complexTask})

	assert.Equal(t, domain.ReasonDefaultFallback, d.Reason)
	assert.Equal(t, "lmstudio", d.Provider)
}

func TestUpdateRoute_ImmediatelyVisible(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{})

	err := r.UpdateRoute(domain.TierModerate, domain.RouteEntry{
		Primary: domain.RouteTarget{Provider: "openai", Model: "gpt-4o-mini"},
	})
	require.NoError(t, err)

	d := r.Route(context.Background(), domain.RouteRequest{Task: moderateTask})
	assert.Equal(t, "openai", d.Provider)
	assert.Equal(t, "gpt-4o-mini", d.Model)
	assert.Equal(t, domain.ReasonRouteTable, d.Reason)
	assert.Equal(t, "gpt-4o-mini", r.Table().Routes[domain.TierModerate].Primary.Model)
}

func TestUpdateRoute_Validation(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{})

	assert.Error(t, r.UpdateRoute("huge", domain.RouteEntry{Primary: domain.RouteTarget{Provider: "ollama", Model: "m"}}))
	assert.Error(t, r.UpdateRoute(domain.TierSimple, domain.RouteEntry{}))
	assert.Error(t, r.UpdateRoute(domain.TierSimple, domain.RouteEntry{Primary: domain.RouteTarget{Provider: "nope", Model: "m"}}))
	assert.Error(t, r.UpdateRoute(domain.TierSimple, domain.RouteEntry{
		Primary:  domain.RouteTarget{Provider: "ollama", Model: "m"},
		Fallback: domain.RouteTarget{Provider: "nope", Model: "m"},
	}))
}

func TestSetAgentOverrideAndLocalOnly(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{})

	require.NoError(t, r.SetAgentOverride("bot", domain.RouteTarget{Provider: "google", Model: "gemini-1.5-flash"}))
	assert.Equal(t, domain.ReasonAgentOverride, r.Route(context.Background(), domain.RouteRequest{Task: "x", Agent: "bot"}).Reason)

	require.NoError(t, r.SetAgentOverride("bot", domain.RouteTarget{}))
	assert.NotEqual(t, domain.ReasonAgentOverride, r.Route(context.Background(), domain.RouteRequest{Task: "x", Agent: "bot"}).Reason)

	assert.Error(t, r.SetAgentOverride("", domain.RouteTarget{Provider: "google", Model: "m"}))
	assert.Error(t, r.SetAgentOverride("bot", domain.RouteTarget{Provider: "nope", Model: "m"}))

	r.SetLocalOnly(true)
	assert.True(t, r.Table().LocalOnly)
	assert.Equal(t, domain.ReasonLocalModeEnforced, r.Route(context.Background(), domain.RouteRequest{Task: complexTask}).Reason)
}

func TestRouter_ConcurrentUpdatesAndRoutes(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.UpdateRoute(domain.TierComplex, domain.RouteEntry{Primary: domain.RouteTarget{Provider: "openai", Model: "gpt-4o"}})
		}()
		go func() {
			defer wg.Done()
			_ = r.Route(context.Background(), domain.RouteRequest{Task: complexTask})
		}()
	}
	wg.Wait()
	assert.Equal(t, "openai", r.Table().Routes[domain.TierComplex].Primary.Provider)
}

func TestTable_IsACopy(t *testing.T) {
	r, _, _ := newRouter(domain.RouterConfig{})
	table := r.Table()
	table.Routes[domain.TierTrivial] = domain.RouteEntry{Primary: domain.RouteTarget{Provider: "x", Model: "y"}}
	assert.Equal(t, "ollama", r.Table().Routes[domain.TierTrivial].Primary.Provider)
	assert.Len(t, table.Providers, 5)
}
