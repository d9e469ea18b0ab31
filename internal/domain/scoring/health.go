package scoring

import (
	"math"

	"github.com/openkraft/keeper/internal/domain"
)

// metricWeights is the point change per unit of each metric. Defect counts
// are negative; coverage percentage is a reward.
var metricWeights = map[domain.MetricKind]float64{
	domain.MetricAnyTypes:        -0.5,
	domain.MetricConsoleLogs:     -0.2,
	domain.MetricUnusedImports:   -0.1,
	domain.MetricOutdatedDeps:    -1.0,
	domain.MetricStyleViolations: -0.3,
	domain.MetricCoverage:        0.1,
}

// HealthScore computes the 0-100 health score of a scan. It depends on the
// scan's metrics only.
func HealthScore(scan domain.ScanReport) int {
	score := 100.0
	for _, kind := range scoredMetrics {
		score += metricWeights[kind] * scan.Value(kind)
	}
	return clampScore(score)
}

// scoredMetrics fixes the summation order so float rounding is reproducible.
var scoredMetrics = []domain.MetricKind{
	domain.MetricAnyTypes,
	domain.MetricConsoleLogs,
	domain.MetricUnusedImports,
	domain.MetricOutdatedDeps,
	domain.MetricStyleViolations,
	domain.MetricCoverage,
}

// MetricImpact returns the signed point contribution of one metric, before
// clamping.
func MetricImpact(scan domain.ScanReport, kind domain.MetricKind) float64 {
	return metricWeights[kind] * scan.Value(kind)
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(max(0, min(100, v))))
}
