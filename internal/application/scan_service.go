package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/domain"
	"github.com/openkraft/keeper/internal/domain/scoring"
)

// ScanService runs every scan probe against a project and assembles a
// ScanReport. Probe failures never surface: the metric stays zero.
type ScanService struct {
	probes []domain.ScanProbe
	lister domain.SourceLister
	logger *zap.Logger
	now    func() time.Time
}

// NewScanService wires the probes. lister may be nil, in which case
// FilesScanned stays zero.
func NewScanService(lister domain.SourceLister, probes []domain.ScanProbe, logger *zap.Logger) *ScanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanService{
		probes: probes,
		lister: lister,
		logger: logger,
		now:    time.Now,
	}
}

func (s *ScanService) Scan(ctx context.Context, projectPath string) domain.ScanReport {
	report := domain.ScanReport{ScannedAt: s.now()}

	if s.lister != nil {
		if files, err := s.lister.ListSources(ctx, projectPath); err == nil {
			report.FilesScanned = len(files)
		} else {
			s.logger.Debug("listing sources failed", zap.Error(err))
		}
	}

	for _, p := range s.probes {
		v, err := s.measure(ctx, p, projectPath)
		if err != nil {
			s.logger.Debug("probe failed",
				zap.String("metric", string(p.Kind())),
				zap.Error(err))
			continue
		}
		report = report.WithValue(p.Kind(), v)
	}

	return report
}

// measure shields the run from a panicking probe.
func (s *ScanService) measure(ctx context.Context, p domain.ScanProbe, projectPath string) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = 0, panicError(r)
		}
	}()
	return p.Measure(ctx, projectPath)
}

// ScanSummary is the read-only result of a scan: metrics, categorized issues
// and the health score. Nothing is modified to produce it.
type ScanSummary struct {
	Scan             domain.ScanReport `json:"scan"`
	AutoFixable      []domain.Issue    `json:"auto_fixable"`
	RequiresApproval []domain.Issue    `json:"requires_approval"`
	Score            int               `json:"score"`
	Grade            string            `json:"grade"`
}

// Summarize scans, categorizes and scores without touching the project.
func (s *ScanService) Summarize(ctx context.Context, projectPath string, minCoverage float64) ScanSummary {
	scan := s.Scan(ctx, projectPath)
	auto, approval := domain.Categorize(domain.DetectIssues(scan, minCoverage))
	score := scoring.HealthScore(scan)
	return ScanSummary{
		Scan:             scan,
		AutoFixable:      auto,
		RequiresApproval: approval,
		Score:            score,
		Grade:            domain.GradeFor(score),
	}
}
