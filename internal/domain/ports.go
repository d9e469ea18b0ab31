package domain

import "context"

// ScanProbe measures one metric of a project. A failing probe is reported as
// an error and the caller substitutes zero.
type ScanProbe interface {
	Kind() MetricKind
	Measure(ctx context.Context, projectPath string) (float64, error)
}

// SourceLister lists the project's source files as paths relative to the
// project root, excluding build output and dependency directories.
type SourceLister interface {
	ListSources(ctx context.Context, projectPath string) ([]string, error)
}

// Fixer applies the closed set of safe remediations and can undo everything
// it touched.
type Fixer interface {
	Apply(ctx context.Context, issues []Issue) []Fix
	Rollback() error
}

// BuildRunner runs the project's build toolchains. Any failure or timeout is
// an error.
type BuildRunner interface {
	Run(ctx context.Context) error
}

// Workspace is the project's working tree under version control.
type Workspace interface {
	// Discard resets tracked files to HEAD, dropping uncommitted changes.
	Discard(ctx context.Context) error
	// Head returns the hash of the checked-out commit.
	Head(ctx context.Context) (string, error)
}

// ChangeRequest carries everything needed to publish a branch for review.
type ChangeRequest struct {
	Branch  string
	Message string
	Title   string
	Body    string
}

// ChangePublisher commits the working tree on a new branch, pushes it and
// opens a change request, returning its URL.
type ChangePublisher interface {
	Publish(ctx context.Context, req ChangeRequest) (string, error)
}

// MetricsSink records the outcome of a run.
type MetricsSink interface {
	Record(ctx context.Context, snap MetricsSnapshot) error
}

// Notifier delivers a one-line message to a named channel.
type Notifier interface {
	Notify(ctx context.Context, channel, message string) error
}

// RunHistory stores and lists run summaries.
type RunHistory interface {
	Save(ctx context.Context, entry RunEntry) error
	List(ctx context.Context, limit int) ([]RunEntry, error)
}

// ProviderProber checks whether a provider answers its health endpoint.
type ProviderProber interface {
	Probe(ctx context.Context, p Provider) error
}

// DecisionRecorder observes routing decisions.
type DecisionRecorder interface {
	RecordDecision(d RouteDecision)
}

// Completer sends a prompt to the provider/model chosen by a decision.
type Completer interface {
	Complete(ctx context.Context, d RouteDecision, prompt string) (string, error)
}

// ConfigLoader loads project configuration.
type ConfigLoader interface {
	Load(projectPath string) (ProjectConfig, error)
}
