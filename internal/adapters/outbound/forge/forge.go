// Package forge opens change requests on a git hosting service.
package forge

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v73/github"
)

// CreatePRParams contains parameters for creating a pull request.
type CreatePRParams struct {
	Owner string
	Repo  string
	Title string
	Body  string
	Base  string // base branch
	Head  string // source branch
	Draft bool
}

// CreatePRResult contains the result of creating a pull request.
type CreatePRResult struct {
	Number int
	URL    string
}

// GitHub creates pull requests through the GitHub REST API.
type GitHub struct {
	client *github.Client
}

// NewGitHub returns a client authenticated with token. An empty token gives
// an anonymous client, which GitHub rejects for writes.
func NewGitHub(token string) *GitHub {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHub{client: client}
}

// WithBaseURL points the client at another API root, such as a GitHub
// Enterprise server.
func (g *GitHub) WithBaseURL(raw string) (*GitHub, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing API URL: %w", err)
	}
	g.client.BaseURL = u
	return g, nil
}

func (g *GitHub) CreatePR(ctx context.Context, p CreatePRParams) (*CreatePRResult, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, p.Owner, p.Repo, &github.NewPullRequest{
		Title: github.Ptr(p.Title),
		Head:  github.Ptr(p.Head),
		Base:  github.Ptr(p.Base),
		Body:  github.Ptr(p.Body),
		Draft: github.Ptr(p.Draft),
	})
	if err != nil {
		return nil, fmt.Errorf("creating pull request on %s/%s: %w", p.Owner, p.Repo, err)
	}
	return &CreatePRResult{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}
