package metrics_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/keeper/internal/adapters/outbound/metrics"
	"github.com/openkraft/keeper/internal/domain"
)

var snap = domain.MetricsSnapshot{
	RunID: "run-1",
	Date:  "2026-10-17",
	Scan: domain.ScanReport{
		AnyTypes:      2,
		ConsoleLogs:   3,
		UnusedImports: 1,
		Coverage:      42.5,
	},
	Score:         88,
	FixesApplied:  2,
	NeedsApproval: 3,
	BuildPassed:   true,
}

func TestCollectors_Record(t *testing.T) {
	c := metrics.NewCollectors(prometheus.NewRegistry())

	require.NoError(t, c.Record(context.Background(), snap))

	assert.Equal(t, 88.0, testutil.ToFloat64(c.HealthScore))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.ScanMetric.WithLabelValues("console_logs")))
	assert.Equal(t, 42.5, testutil.ToFloat64(c.ScanMetric.WithLabelValues("coverage")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.ScanMetric.WithLabelValues("outdated_deps")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.FixesApplied))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BuildPassed))
	assert.Greater(t, testutil.ToFloat64(c.LastRun), 0.0)
}

func TestCollectors_RecordDecision(t *testing.T) {
	c := metrics.NewCollectors(prometheus.NewRegistry())
	d := domain.RouteDecision{Provider: "ollama", Tier: domain.TierSimple, Reason: domain.ReasonRouteTable}

	c.RecordDecision(d)
	c.RecordDecision(d)
	c.RecordDecision(domain.RouteDecision{Provider: "ollama", Tier: domain.TierSimple, Reason: domain.ReasonLastResort})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Decisions.WithLabelValues("ollama", "simple", "route_table")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.Decisions))
}

func TestHTTPSink_PostsPayload(t *testing.T) {
	var got map[string]any
	var path, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := metrics.NewHTTPSink(srv.URL+"/", nil).Record(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, "/api/metrics", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "2026-10-17", got["date"])
	assert.Equal(t, 88.0, got["score"])
	m := got["metrics"].(map[string]any)
	assert.Equal(t, 3.0, m["console_logs"])
	assert.Equal(t, 42.5, m["coverage"])
	assert.Len(t, m, 6)
}

func TestHTTPSink_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := metrics.NewHTTPSink(srv.URL, nil).Record(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "db down")
}

func TestHTTPSink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Error(t, metrics.NewHTTPSink(url, nil).Record(context.Background(), snap))
}

func TestPushSink_PushesGroupedByDate(t *testing.T) {
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollectors(reg)
	sink := metrics.NewPushSink(srv.URL, "keeper", c, reg)

	require.NoError(t, sink.Record(context.Background(), snap))

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/keeper/run_date/2026-10-17", path)
	assert.NotEmpty(t, body)
	assert.Equal(t, 88.0, testutil.ToFloat64(c.HealthScore))
}

type stubSink struct{ err error }

func (s stubSink) Record(context.Context, domain.MetricsSnapshot) error { return s.err }

func TestMulti_JoinsErrors(t *testing.T) {
	a, b := errors.New("a failed"), errors.New("b failed")
	err := metrics.Multi{stubSink{a}, stubSink{}, stubSink{b}}.Record(context.Background(), snap)

	require.Error(t, err)
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
	assert.NoError(t, metrics.Multi{stubSink{}}.Record(context.Background(), snap))
	assert.NoError(t, metrics.Multi(nil).Record(context.Background(), snap))
}
