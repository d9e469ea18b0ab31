package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/openkraft/keeper/internal/domain"
)

const namespace = "keeper"

// reported lists every scan metric exported, counts first.
var reported = append(append([]domain.MetricKind{}, domain.CountMetrics...), domain.MetricCoverage)

// Collectors holds the Prometheus view of the latest run and of routing
// decisions. It implements domain.MetricsSink and domain.DecisionRecorder.
type Collectors struct {
	HealthScore   prometheus.Gauge
	ScanMetric    *prometheus.GaugeVec
	FixesApplied  prometheus.Gauge
	NeedsApproval prometheus.Gauge
	BuildPassed   prometheus.Gauge
	LastRun       prometheus.Gauge
	Decisions     *prometheus.CounterVec
}

// NewCollectors registers the collectors with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		HealthScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_score",
			Help:      "Health score (0-100) of the last maintenance run",
		}),
		ScanMetric: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_metric",
			Help:      "Raw scan measurements of the last maintenance run",
		}, []string{"metric"}),
		FixesApplied: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fixes_applied",
			Help:      "Files changed by safe fixes in the last run",
		}),
		NeedsApproval: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "needs_approval",
			Help:      "Issues left for human review in the last run",
		}),
		BuildPassed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_passed",
			Help:      "1 if the last run's build verification passed",
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run was recorded",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Routing decisions by provider, tier and reason",
		}, []string{"provider", "tier", "reason"}),
	}
}

func (c *Collectors) Record(_ context.Context, snap domain.MetricsSnapshot) error {
	c.HealthScore.Set(float64(snap.Score))
	for _, kind := range reported {
		c.ScanMetric.WithLabelValues(string(kind)).Set(snap.Scan.Value(kind))
	}
	c.FixesApplied.Set(float64(snap.FixesApplied))
	c.NeedsApproval.Set(float64(snap.NeedsApproval))
	if snap.BuildPassed {
		c.BuildPassed.Set(1)
	} else {
		c.BuildPassed.Set(0)
	}
	c.LastRun.SetToCurrentTime()
	return nil
}

func (c *Collectors) RecordDecision(d domain.RouteDecision) {
	c.Decisions.WithLabelValues(d.Provider, string(d.Tier), string(d.Reason)).Inc()
}

// PushSink updates the collectors and pushes the gatherer to a Pushgateway.
type PushSink struct {
	collectors *Collectors
	pusher     *push.Pusher
}

func NewPushSink(url, job string, collectors *Collectors, g prometheus.Gatherer) *PushSink {
	return &PushSink{
		collectors: collectors,
		pusher:     push.New(url, job).Gatherer(g),
	}
}

func (p *PushSink) Record(ctx context.Context, snap domain.MetricsSnapshot) error {
	if err := p.collectors.Record(ctx, snap); err != nil {
		return err
	}
	if err := p.pusher.Grouping("run_date", snap.Date).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing to gateway: %w", err)
	}
	return nil
}

// HTTPSink posts a run's metrics to {base}/api/metrics.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSink(apiBase string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSink{endpoint: strings.TrimRight(apiBase, "/") + "/api/metrics", client: client}
}

type metricsPayload struct {
	RunID   string             `json:"run_id"`
	Date    string             `json:"date"`
	Metrics map[string]float64 `json:"metrics"`
	Score   int                `json:"score"`
}

func (h *HTTPSink) Record(ctx context.Context, snap domain.MetricsSnapshot) error {
	payload := metricsPayload{
		RunID:   snap.RunID,
		Date:    snap.Date,
		Metrics: make(map[string]float64),
		Score:   snap.Score,
	}
	for _, kind := range reported {
		payload.Metrics[string(kind)] = snap.Scan.Value(kind)
	}
	return PostJSON(ctx, h.client, h.endpoint, payload)
}

// Multi records into every sink and joins their errors.
type Multi []domain.MetricsSink

func (m Multi) Record(ctx context.Context, snap domain.MetricsSnapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PostJSON sends body as JSON and treats any non-2xx status as an error.
func PostJSON(ctx context.Context, client *http.Client, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: %s: %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}
