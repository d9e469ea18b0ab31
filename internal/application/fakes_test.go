package application_test

import (
	"context"
	"errors"
	"sync"

	"github.com/openkraft/keeper/internal/domain"
)

type fakeProbe struct {
	kind  domain.MetricKind
	value float64
	err   error
	panic bool
}

func (p fakeProbe) Kind() domain.MetricKind { return p.kind }

func (p fakeProbe) Measure(context.Context, string) (float64, error) {
	if p.panic {
		panic("probe exploded")
	}
	return p.value, p.err
}

type fakeFixer struct {
	fixes     []domain.Fix
	applied   [][]domain.Issue
	rollbacks int
	onApply   func()
	onRestore func()
}

func (f *fakeFixer) Apply(_ context.Context, issues []domain.Issue) []domain.Fix {
	f.applied = append(f.applied, issues)
	if f.onApply != nil {
		f.onApply()
	}
	return f.fixes
}

func (f *fakeFixer) Rollback() error {
	f.rollbacks++
	if f.onRestore != nil {
		f.onRestore()
	}
	return nil
}

type fakeBuild struct {
	err   error
	calls int
	onRun func(context.Context) error
}

func (b *fakeBuild) Run(ctx context.Context) error {
	b.calls++
	if b.onRun != nil {
		return b.onRun(ctx)
	}
	return b.err
}

type fakeWorkspace struct {
	discards int
	head     string
}

func (w *fakeWorkspace) Discard(context.Context) error {
	w.discards++
	return nil
}

func (w *fakeWorkspace) Head(context.Context) (string, error) {
	if w.head == "" {
		return "", errors.New("no commits")
	}
	return w.head, nil
}

type fakePublisher struct {
	url      string
	err      error
	requests []domain.ChangeRequest
}

func (p *fakePublisher) Publish(_ context.Context, req domain.ChangeRequest) (string, error) {
	p.requests = append(p.requests, req)
	return p.url, p.err
}

type fakeSink struct {
	err   error
	snaps []domain.MetricsSnapshot
}

func (s *fakeSink) Record(_ context.Context, snap domain.MetricsSnapshot) error {
	s.snaps = append(s.snaps, snap)
	return s.err
}

type fakeNotifier struct {
	err      error
	channels []string
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, channel, message string) error {
	n.channels = append(n.channels, channel)
	n.messages = append(n.messages, message)
	return n.err
}

type fakeHistory struct {
	entries []domain.RunEntry
}

func (h *fakeHistory) Save(_ context.Context, e domain.RunEntry) error {
	h.entries = append(h.entries, e)
	return nil
}

func (h *fakeHistory) List(_ context.Context, limit int) ([]domain.RunEntry, error) {
	if limit > 0 && limit < len(h.entries) {
		return h.entries[:limit], nil
	}
	return h.entries, nil
}

type fakeProber struct {
	mu   sync.Mutex
	down map[string]bool
	hits []string
}

func (p *fakeProber) Probe(_ context.Context, prov domain.Provider) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits = append(p.hits, prov.Name)
	if p.down[prov.Name] {
		return errors.New("connection refused")
	}
	return nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	decisions []domain.RouteDecision
}

func (r *fakeRecorder) RecordDecision(d domain.RouteDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
}
