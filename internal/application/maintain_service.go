package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/domain"
	"github.com/openkraft/keeper/internal/domain/scoring"
)

const tracerName = "github.com/openkraft/keeper/internal/application"

// MaintainOptions configures one maintenance run.
type MaintainOptions struct {
	ProjectPath string
	DryRun      bool
	Channels    []string
	AgentName   string
	MinCoverage float64
	Publish     bool
}

// MaintainOptionsFrom derives run options from project configuration.
func MaintainOptionsFrom(projectPath string, cfg domain.ProjectConfig) MaintainOptions {
	return MaintainOptions{
		ProjectPath: projectPath,
		DryRun:      cfg.Maintenance.DryRun,
		Channels:    cfg.Maintenance.Channels,
		AgentName:   cfg.EffectiveAgentName(),
		MinCoverage: cfg.EffectiveMinCoverage(),
		Publish:     cfg.PublishEnabled(),
	}
}

// MaintainDeps are the collaborators of a run. Scanner, Fixer and Build are
// required; the rest may be nil and their stage is skipped.
type MaintainDeps struct {
	Scanner   *ScanService
	Fixer     domain.Fixer
	Build     domain.BuildRunner
	Workspace domain.Workspace
	Publisher domain.ChangePublisher
	Metrics   domain.MetricsSink
	Notifier  domain.Notifier
	History   domain.RunHistory
	Logger    *zap.Logger
	Tracer    trace.Tracer
}

// MaintainService runs the eight-stage maintenance pipeline:
// scan → categorize → fix → verify build → score → metrics → publish → notify.
type MaintainService struct {
	deps   MaintainDeps
	opts   MaintainOptions
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewMaintainService(deps MaintainDeps, opts MaintainOptions) *MaintainService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	if opts.AgentName == "" {
		opts.AgentName = domain.DefaultAgentName
	}
	return &MaintainService{
		deps:   deps,
		opts:   opts,
		logger: logger,
		tracer: tracer,
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *MaintainService) WithClock(now func() time.Time) *MaintainService {
	s.now = now
	return s
}

// Run executes all stages in order and always returns a report with
// CompletedAt set. Stage failures are recorded in report.Errors; a panic in
// any stage is recovered and recorded the same way.
func (s *MaintainService) Run(ctx context.Context) (report *domain.MaintenanceReport) {
	report = &domain.MaintenanceReport{
		RunID:       uuid.NewString(),
		ProjectPath: s.opts.ProjectPath,
		StartedAt:   s.now(),
		DryRun:      s.opts.DryRun,
	}

	ctx, span := s.tracer.Start(ctx, "maintain.run", trace.WithAttributes(
		attribute.String("keeper.run_id", report.RunID),
		attribute.Bool("keeper.dry_run", report.DryRun),
	))
	log := s.logger.With(zap.String("run_id", report.RunID))

	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			report.AddError(fmt.Sprintf("maintenance run aborted: %v", err))
			span.RecordError(err)
			log.Error("maintenance run panicked", zap.Any("panic", r))
		}
		report.CompletedAt = s.now()
		if len(report.Errors) > 0 {
			span.SetStatus(codes.Error, report.Errors[0])
		}
		span.SetAttributes(attribute.Int("keeper.score", report.Score))
		span.End()
		log.Info("maintenance run finished",
			zap.Int("score", report.Score),
			zap.Int("fixes", len(report.Fixes)),
			zap.Int("errors", len(report.Errors)),
			zap.Duration("duration", report.Duration()))
	}()

	stages := []struct {
		name string
		fn   func(context.Context, *domain.MaintenanceReport) error
	}{
		{"scan", s.scan},
		{"categorize", s.categorize},
		{"fix", s.fix},
		{"verify_build", s.verifyBuild},
		{"score", s.score},
		{"metrics", s.persistMetrics},
		{"publish", s.publish},
		{"notify", s.notify},
	}

	verified := false
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			report.AddError(fmt.Sprintf("run cancelled before %s: %v", st.name, err))
			// Fixes on disk are never left unverified.
			if !verified && len(report.AppliedFixes()) > 0 {
				s.runStage(context.WithoutCancel(ctx), "verify_build", s.verifyBuild, report, log)
			}
			return report
		}
		s.runStage(ctx, st.name, st.fn, report, log)
		if st.name == "verify_build" {
			verified = true
		}
	}

	s.recordHistory(ctx, report, log)
	return report
}

func (s *MaintainService) runStage(ctx context.Context, name string, fn func(context.Context, *domain.MaintenanceReport) error, r *domain.MaintenanceReport, log *zap.Logger) {
	log.Info("stage started", zap.String("stage", name))
	stageCtx, span := s.tracer.Start(ctx, "maintain."+name)
	defer span.End()
	if err := fn(stageCtx, r); err != nil {
		r.AddError(err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("stage failed", zap.String("stage", name), zap.Error(err))
	}
}

// 1. Scan. Probe failures are absorbed by the scan service.
func (s *MaintainService) scan(ctx context.Context, r *domain.MaintenanceReport) error {
	r.Scan = s.deps.Scanner.Scan(ctx, s.opts.ProjectPath)
	return nil
}

// 2. Categorize by the fixed policy table.
func (s *MaintainService) categorize(_ context.Context, r *domain.MaintenanceReport) error {
	issues := domain.DetectIssues(r.Scan, s.opts.MinCoverage)
	r.AutoFixable, r.RequiresApproval = domain.Categorize(issues)
	return nil
}

// 3. Apply safe fixes unless dry-run.
func (s *MaintainService) fix(ctx context.Context, r *domain.MaintenanceReport) error {
	if s.opts.DryRun || len(r.AutoFixable) == 0 {
		return nil
	}
	r.Fixes = s.deps.Fixer.Apply(ctx, r.AutoFixable)
	for _, f := range r.Fixes {
		if f.IsError() {
			s.logger.Warn("fix category failed", zap.String("error", f.Error))
		}
	}
	return nil
}

// 4. Verify the build. A failure after real fixes restores every touched file
// and hard-resets the working tree.
func (s *MaintainService) verifyBuild(ctx context.Context, r *domain.MaintenanceReport) error {
	err := s.deps.Build.Run(ctx)
	if err == nil {
		r.BuildPassed = true
		return nil
	}

	if len(r.AppliedFixes()) == 0 {
		return fmt.Errorf("build verification failed: %w", err)
	}

	applied := len(r.AppliedFixes())
	var restoreErrs []error
	if rbErr := s.deps.Fixer.Rollback(); rbErr != nil {
		restoreErrs = append(restoreErrs, fmt.Errorf("restoring backups: %w", rbErr))
	}
	if s.deps.Workspace != nil {
		if dErr := s.deps.Workspace.Discard(context.WithoutCancel(ctx)); dErr != nil {
			restoreErrs = append(restoreErrs, fmt.Errorf("discarding working tree: %w", dErr))
		}
	}
	r.Fixes = nil

	msg := fmt.Sprintf("build failed after %d fixes, rolled back: %v", applied, err)
	for _, e := range restoreErrs {
		msg += "; " + e.Error()
	}
	return errors.New(msg)
}

// 5. Score from the scan alone.
func (s *MaintainService) score(_ context.Context, r *domain.MaintenanceReport) error {
	r.Score = scoring.HealthScore(r.Scan)
	return nil
}

// 6. Persist metrics.
func (s *MaintainService) persistMetrics(ctx context.Context, r *domain.MaintenanceReport) error {
	if s.deps.Metrics == nil {
		return nil
	}
	if err := s.deps.Metrics.Record(ctx, domain.SnapshotOf(r)); err != nil {
		return fmt.Errorf("recording metrics: %w", err)
	}
	return nil
}

// 7. Publish a change request for the applied fixes.
func (s *MaintainService) publish(ctx context.Context, r *domain.MaintenanceReport) error {
	applied := r.AppliedFixes()
	if s.opts.DryRun || !s.opts.Publish || len(applied) == 0 || s.deps.Publisher == nil {
		return nil
	}

	url, err := s.deps.Publisher.Publish(ctx, ChangeRequestFor(r, s.opts.AgentName))
	if err != nil {
		return fmt.Errorf("publishing change: %w", err)
	}
	r.PRURL = url
	return nil
}

// 8. Notify every channel. Failures are only logged.
func (s *MaintainService) notify(ctx context.Context, r *domain.MaintenanceReport) error {
	if s.deps.Notifier == nil {
		return nil
	}
	msg := SummaryLine(r)
	for _, ch := range s.opts.Channels {
		if err := s.deps.Notifier.Notify(ctx, ch, msg); err != nil {
			s.logger.Debug("notification failed", zap.String("channel", ch), zap.Error(err))
		}
	}
	return nil
}

func (s *MaintainService) recordHistory(ctx context.Context, r *domain.MaintenanceReport, log *zap.Logger) {
	if s.deps.History == nil {
		return
	}
	entry := domain.RunEntry{
		RunID:         r.RunID,
		Timestamp:     r.StartedAt,
		Score:         r.Score,
		Grade:         r.Grade(),
		FixesApplied:  len(r.AppliedFixes()),
		NeedsApproval: len(r.RequiresApproval),
		BuildPassed:   r.BuildPassed,
		PRURL:         r.PRURL,
		Errors:        len(r.Errors),
	}
	if s.deps.Workspace != nil {
		if head, err := s.deps.Workspace.Head(ctx); err == nil {
			entry.CommitHash = head
		}
	}
	if err := s.deps.History.Save(ctx, entry); err != nil {
		r.AddError(fmt.Sprintf("saving run history: %v", err))
		log.Warn("saving run history failed", zap.Error(err))
	}
}

// ChangeRequestFor builds the branch, commit message and PR text for a run.
func ChangeRequestFor(r *domain.MaintenanceReport, agent string) domain.ChangeRequest {
	applied := r.AppliedFixes()
	date := r.StartedAt.Format("2006-01-02")

	message := fmt.Sprintf("chore(maintenance): nightly cleanup %s\n\nHealth score: %d/100 (%s)\nFixes applied: %d\nNeeds approval: %d",
		date, r.Score, r.Grade(), len(applied), len(r.RequiresApproval))

	body := fmt.Sprintf("Automated maintenance by %s.\n\n**Health score:** %d/100 (%s)\n\n### Fixes applied (%d)\n",
		agent, r.Score, r.Grade(), len(applied))
	for _, f := range applied {
		body += fmt.Sprintf("- `%s`: removed %d %s\n", f.File, f.Count, f.Kind)
	}
	if len(r.RequiresApproval) > 0 {
		body += fmt.Sprintf("\n### Needs approval (%d)\n", len(r.RequiresApproval))
		for _, iss := range r.RequiresApproval {
			body += fmt.Sprintf("- %s: %d (%s)\n", iss.Kind, iss.Count, iss.Severity)
		}
	}

	return domain.ChangeRequest{
		Branch:  "maintenance/" + date,
		Message: message,
		Title:   fmt.Sprintf("Nightly maintenance %s: %d fixes, score %d", date, len(applied), r.Score),
		Body:    body,
	}
}

// SummaryLine is the one-line notification for a finished run.
func SummaryLine(r *domain.MaintenanceReport) string {
	line := fmt.Sprintf("Maintenance %s: score %d (%s), %d fixes, %d need approval",
		r.StartedAt.Format("2006-01-02"), r.Score, r.Grade(), len(r.AppliedFixes()), len(r.RequiresApproval))
	if !r.BuildPassed {
		line += ", build failing"
	}
	if r.PRURL != "" {
		line += ", PR " + r.PRURL
	}
	if r.DryRun {
		line += " [dry-run]"
	}
	return line
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
