package gitvcs_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openkraft/keeper/internal/adapters/outbound/forge"
	"github.com/openkraft/keeper/internal/adapters/outbound/gitvcs"
	"github.com/openkraft/keeper/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpener struct {
	params []forge.CreatePRParams
	err    error
}

func (f *fakeOpener) CreatePR(_ context.Context, p forge.CreatePRParams) (*forge.CreatePRResult, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	return &forge.CreatePRResult{Number: 7, URL: "https://github.com/" + p.Owner + "/" + p.Repo + "/pull/7"}, nil
}

// initRepo creates a work tree with one commit and a bare "origin" remote.
func initRepo(t *testing.T) (work, remote string) {
	t.Helper()
	root := t.TempDir()
	work = filepath.Join(root, "work")
	remote = filepath.Join(root, "remote.git")
	require.NoError(t, os.MkdirAll(work, 0755))

	runGit(t, root, "init", "--bare", remote)
	runGit(t, work, "init", "-b", "main")
	runGit(t, work, "config", "user.email", "test@test.com")
	runGit(t, work, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(work, "app.ts"), []byte("console.log(1)\nexport const a = 1\n"), 0644))
	runGit(t, work, "add", ".")
	runGit(t, work, "commit", "-m", "init")
	runGit(t, work, "remote", "add", "origin", remote)
	return work, remote
}

func TestIsGitRepo(t *testing.T) {
	work, _ := initRepo(t)
	assert.True(t, gitvcs.IsGitRepo(work))
	sub := filepath.Join(work, "src")
	require.NoError(t, os.MkdirAll(sub, 0755))
	assert.True(t, gitvcs.IsGitRepo(sub))
	assert.False(t, gitvcs.IsGitRepo(t.TempDir()))
}

func TestHead_ReturnsFullHash(t *testing.T) {
	work, _ := initRepo(t)
	repo := gitvcs.New(work, gitvcs.Options{}, nil, nil)

	hash, err := repo.Head(context.Background())
	require.NoError(t, err)
	assert.Len(t, hash, 40, "should be a full SHA-1 hash")
	assert.Equal(t, gitOutput(t, work, "rev-parse", "HEAD"), hash)
}

func TestHead_NotGitRepo(t *testing.T) {
	repo := gitvcs.New(t.TempDir(), gitvcs.Options{}, nil, nil)
	_, err := repo.Head(context.Background())
	assert.Error(t, err)
}

func TestDiscard_RestoresTrackedFiles(t *testing.T) {
	work, _ := initRepo(t)
	path := filepath.Join(work, "app.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1\n"), 0644))

	repo := gitvcs.New(work, gitvcs.Options{}, nil, nil)
	require.NoError(t, repo.Discard(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)\nexport const a = 1\n", string(data))
}

func TestPublish_CommitsPushesAndOpensPR(t *testing.T) {
	work, remote := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(work, "app.ts"), []byte("export const a = 1\n"), 0644))

	opener := &fakeOpener{}
	cfg := domain.DefaultConfig()
	cfg.Publish.Repository = "acme/webapp"
	cfg.Publish.AuthorName = "Night Bot"
	repo := gitvcs.New(work, gitvcs.OptionsFrom(cfg, ""), opener, nil)

	url, err := repo.Publish(context.Background(), domain.ChangeRequest{
		Branch:  "maintenance/2026-10-17",
		Message: "chore: nightly maintenance",
		Title:   "Nightly maintenance",
		Body:    "1 fix",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/webapp/pull/7", url)

	require.Len(t, opener.params, 1)
	p := opener.params[0]
	assert.Equal(t, "acme", p.Owner)
	assert.Equal(t, "webapp", p.Repo)
	assert.Equal(t, "main", p.Base)
	assert.Equal(t, "maintenance/2026-10-17", p.Head)
	assert.Equal(t, "Nightly maintenance", p.Title)

	pushed := gitOutput(t, remote, "rev-parse", "refs/heads/maintenance/2026-10-17")
	local := gitOutput(t, work, "rev-parse", "refs/heads/maintenance/2026-10-17")
	assert.Equal(t, local, pushed)
	assert.Equal(t, "Night Bot", gitOutput(t, work, "log", "-1", "--format=%an", "maintenance/2026-10-17"))
	assert.Equal(t, "chore: nightly maintenance", gitOutput(t, work, "log", "-1", "--format=%s", "maintenance/2026-10-17"))
}

func TestPublish_ReturnsToBaseBranch(t *testing.T) {
	work, _ := initRepo(t)
	base := gitOutput(t, work, "rev-parse", "HEAD")
	require.NoError(t, os.WriteFile(filepath.Join(work, "app.ts"), []byte("export const a = 1\n"), 0644))

	repo := gitvcs.New(work, gitvcs.Options{}, nil, nil)
	_, err := repo.Publish(context.Background(), domain.ChangeRequest{Branch: "maintenance/a", Message: "first"})
	require.NoError(t, err)

	assert.Equal(t, "main", gitOutput(t, work, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Equal(t, base, gitOutput(t, work, "rev-parse", "HEAD"), "base branch must not move")
	assert.Empty(t, gitOutput(t, work, "status", "--porcelain"))

	// A second run branches from main again instead of stacking on the first.
	require.NoError(t, os.WriteFile(filepath.Join(work, "b.ts"), []byte("export {}\n"), 0644))
	_, err = repo.Publish(context.Background(), domain.ChangeRequest{Branch: "maintenance/b", Message: "second"})
	require.NoError(t, err)
	assert.Equal(t, base, gitOutput(t, work, "rev-parse", "maintenance/b~1"))
	assert.Equal(t, "b.ts", gitOutput(t, work, "diff-tree", "--no-commit-id", "--name-only", "-r", "maintenance/b"))
}

func TestPublish_NeverCommitsKeeperState(t *testing.T) {
	work, _ := initRepo(t)
	state := filepath.Join(work, ".keeper")
	require.NoError(t, os.MkdirAll(state, 0755))
	for _, name := range []string{"history.db", "history.db-wal", "history.db-shm"} {
		require.NoError(t, os.WriteFile(filepath.Join(state, name), []byte("sqlite"), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(work, "var"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "var", "runs.db"), []byte("sqlite"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(work, "var", "runs.db-wal"), []byte("sqlite"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(work, "app.ts"), []byte("export const a = 1\n"), 0644))

	cfg := domain.DefaultConfig()
	cfg.Metrics.HistoryDB = "var/runs.db"
	repo := gitvcs.New(work, gitvcs.OptionsFrom(cfg, ""), nil, nil)
	_, err := repo.Publish(context.Background(), domain.ChangeRequest{Branch: "maintenance/state", Message: "m"})
	require.NoError(t, err)

	files := gitOutput(t, work, "ls-tree", "-r", "--name-only", "maintenance/state")
	assert.Equal(t, "app.ts", files)
	assert.FileExists(t, filepath.Join(state, "history.db"), "untracked state survives the checkout")
	assert.FileExists(t, filepath.Join(work, "var", "runs.db"))
}

func TestPublish_StagesDeletions(t *testing.T) {
	work, _ := initRepo(t)
	require.NoError(t, os.Remove(filepath.Join(work, "app.ts")))
	require.NoError(t, os.WriteFile(filepath.Join(work, "new.ts"), []byte("export {}\n"), 0644))

	repo := gitvcs.New(work, gitvcs.Options{}, nil, nil)
	_, err := repo.Publish(context.Background(), domain.ChangeRequest{Branch: "maintenance/del", Message: "m"})
	require.NoError(t, err)

	assert.Equal(t, "new.ts", gitOutput(t, work, "ls-tree", "-r", "--name-only", "maintenance/del"))
}

func TestPublish_ForgeErrorPropagates(t *testing.T) {
	work, _ := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(work, "new.ts"), []byte("export {}\n"), 0644))

	opener := &fakeOpener{err: errors.New("422 validation failed")}
	repo := gitvcs.New(work, gitvcs.Options{Repository: "acme/webapp"}, opener, nil)

	_, err := repo.Publish(context.Background(), domain.ChangeRequest{Branch: "maintenance/x", Message: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestPublish_SlugFromLocalRemoteFails(t *testing.T) {
	work, _ := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(work, "new.ts"), []byte("export {}\n"), 0644))

	opener := &fakeOpener{}
	repo := gitvcs.New(work, gitvcs.Options{}, opener, nil)

	_, err := repo.Publish(context.Background(), domain.ChangeRequest{Branch: "maintenance/y", Message: "m"})
	require.Error(t, err)
	assert.Empty(t, opener.params)
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, string(out))
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err, "git %v", args)
	return strings.TrimSpace(string(out))
}
