package gitvcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/adapters/outbound/forge"
	"github.com/openkraft/keeper/internal/domain"
)

const (
	defaultAuthorName  = "keeper"
	defaultAuthorEmail = "keeper@users.noreply.github.com"
	stateDir           = ".keeper"
)

// sqliteSidecars are the files SQLite keeps next to an open database.
var sqliteSidecars = []string{"", "-wal", "-shm", "-journal"}

// PROpener opens a pull request for a pushed branch.
type PROpener interface {
	CreatePR(ctx context.Context, p forge.CreatePRParams) (*forge.CreatePRResult, error)
}

// Options configure publishing.
type Options struct {
	Remote      string
	BaseBranch  string
	AuthorName  string
	AuthorEmail string
	Token       string
	Repository  string // "owner/name"; derived from the remote URL when empty
	// Exclude lists project-relative (or absolute) paths that are never
	// committed. The state directory is always excluded.
	Exclude []string
}

// OptionsFrom maps project configuration onto Options. token is the already
// resolved credential.
func OptionsFrom(cfg domain.ProjectConfig, token string) Options {
	return Options{
		Remote:      cfg.EffectiveRemote(),
		BaseBranch:  cfg.EffectiveBaseBranch(),
		AuthorName:  cfg.Publish.AuthorName,
		AuthorEmail: cfg.Publish.AuthorEmail,
		Token:       token,
		Repository:  cfg.Publish.Repository,
		Exclude:     historyFiles(cfg.EffectiveHistoryDB()),
	}
}

func historyFiles(db string) []string {
	out := make([]string, 0, len(sqliteSidecars))
	for _, suffix := range sqliteSidecars {
		out = append(out, db+suffix)
	}
	return out
}

// Repo implements domain.Workspace and domain.ChangePublisher on a local
// git working tree using go-git.
type Repo struct {
	path   string
	opts   Options
	pr     PROpener
	logger *zap.Logger
	now    func() time.Time
}

func New(projectPath string, opts Options, pr PROpener, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Remote == "" {
		opts.Remote = domain.DefaultRemote
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = domain.DefaultBaseBranch
	}
	if opts.AuthorName == "" {
		opts.AuthorName = defaultAuthorName
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = defaultAuthorEmail
	}
	return &Repo{path: projectPath, opts: opts, pr: pr, logger: logger, now: time.Now}
}

// IsGitRepo reports whether path is inside a git working tree.
func IsGitRepo(path string) bool {
	_, err := open(path)
	return err == nil
}

func open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repo: %w", err)
	}
	return repo, nil
}

func (r *Repo) Head(_ context.Context) (string, error) {
	repo, err := open(r.path)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// Discard hard-resets the working tree to HEAD. Untracked files are kept.
func (r *Repo) Discard(_ context.Context) error {
	repo, err := open(r.path)
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("resetting to %s: %w", head.Hash().String()[:7], err)
	}
	return nil
}

// Publish creates req.Branch from HEAD, commits every change outside the
// excluded paths, pushes the branch and opens a pull request against the base
// branch. Once the commit exists the work tree is switched back to the base
// branch so the next run starts from it. A failure after the commit leaves
// the commit in place on req.Branch.
func (r *Repo) Publish(ctx context.Context, req domain.ChangeRequest) (string, error) {
	repo, err := open(r.path)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening worktree: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	start := head.Name()

	// 1. Branch
	ref := plumbing.NewBranchReferenceName(req.Branch)
	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Create: true, Keep: true}); err != nil {
		return "", fmt.Errorf("creating branch %s: %w", req.Branch, err)
	}

	// 2. Stage and commit
	if err := r.stage(wt); err != nil {
		return "", err
	}
	hash, err := wt.Commit(req.Message, &git.CommitOptions{
		Author: &object.Signature{Name: r.opts.AuthorName, Email: r.opts.AuthorEmail, When: r.now()},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	r.logger.Info("committed maintenance fixes", zap.String("branch", req.Branch), zap.String("commit", hash.String()))
	defer r.returnToBase(repo, wt, start)

	// 3. Push
	push := &git.PushOptions{
		RemoteName: r.opts.Remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())},
	}
	if r.opts.Token != "" {
		push.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: r.opts.Token}
	}
	if err := repo.PushContext(ctx, push); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("pushing %s to %s: %w", req.Branch, r.opts.Remote, err)
	}

	// 4. Pull request
	if r.pr == nil {
		return "", nil
	}
	owner, name, err := r.slug(repo)
	if err != nil {
		return "", err
	}
	res, err := r.pr.CreatePR(ctx, forge.CreatePRParams{
		Owner: owner,
		Repo:  name,
		Title: req.Title,
		Body:  req.Body,
		Base:  r.opts.BaseBranch,
		Head:  req.Branch,
	})
	if err != nil {
		return "", err
	}
	return res.URL, nil
}

// stage adds every changed path except the excluded ones. Deleted files are
// staged as removals.
func (r *Repo) stage(wt *git.Worktree) error {
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}
	root := wt.Filesystem.Root()
	excluded := r.excludedPaths()

	paths := make([]string, 0, len(status))
	for path, st := range status {
		if st.Worktree == git.Unmodified {
			continue
		}
		if isExcluded(filepath.Join(root, filepath.FromSlash(path)), excluded) {
			r.logger.Debug("not staging keeper state", zap.String("path", path))
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if _, err := wt.Add(path); err != nil {
			return fmt.Errorf("staging %s: %w", path, err)
		}
	}
	return nil
}

func (r *Repo) excludedPaths() []string {
	base, err := filepath.Abs(r.path)
	if err != nil {
		base = r.path
	}
	out := []string{filepath.Join(base, stateDir)}
	for _, p := range r.opts.Exclude {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

func isExcluded(path string, excluded []string) bool {
	for _, ex := range excluded {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// returnToBase checks out the base branch, or the branch Publish started
// from when the base does not exist locally. Excluded files are untracked and
// survive the checkout.
func (r *Repo) returnToBase(repo *git.Repository, wt *git.Worktree, start plumbing.ReferenceName) {
	target := plumbing.NewBranchReferenceName(r.opts.BaseBranch)
	if _, err := repo.Reference(target, false); err != nil {
		if !start.IsBranch() {
			r.logger.Warn("base branch missing; staying on maintenance branch", zap.String("base", r.opts.BaseBranch))
			return
		}
		target = start
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: target}); err != nil {
		r.logger.Warn("returning to base branch", zap.String("branch", target.Short()), zap.Error(err))
	}
}

func (r *Repo) slug(repo *git.Repository) (string, string, error) {
	if r.opts.Repository != "" {
		owner, name, ok := strings.Cut(r.opts.Repository, "/")
		if !ok || owner == "" || name == "" {
			return "", "", fmt.Errorf("publish.repository = %q (want owner/name)", r.opts.Repository)
		}
		return owner, name, nil
	}
	url, err := RemoteURL(repo, r.opts.Remote)
	if err != nil {
		return "", "", err
	}
	return forge.ParseRemote(url)
}

// RemoteURL returns the first URL of the named remote.
func RemoteURL(repo *git.Repository, name string) (string, error) {
	remote, err := repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf("looking up remote %s: %w", name, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", name)
	}
	return urls[0], nil
}
