package forge

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRemote extracts owner and repository name from a git remote URL.
// Handles SSH (git@host:owner/repo.git), ssh:// and HTTPS forms.
func ParseRemote(remoteURL string) (owner, repo string, err error) {
	var path string
	switch {
	case strings.HasPrefix(remoteURL, "git@"):
		idx := strings.Index(remoteURL, ":")
		if idx < 0 {
			return "", "", fmt.Errorf("unrecognized remote URL %q", remoteURL)
		}
		path = remoteURL[idx+1:]
	case strings.Contains(remoteURL, "://"):
		u, perr := url.Parse(remoteURL)
		if perr != nil {
			return "", "", fmt.Errorf("parsing remote URL: %w", perr)
		}
		path = u.Path
	default:
		return "", "", fmt.Errorf("unrecognized remote URL %q", remoteURL)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("remote URL %q has no owner/repo path", remoteURL)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
