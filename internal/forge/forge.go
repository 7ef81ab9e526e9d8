// Package forge implements the code hosting backends used to publish release notes and manage release pull
// requests: GitHub through google/go-github and GitLab through its REST API.
package forge

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const (
	KindGitHub = "github"
	KindGitLab = "gitlab"

	DefaultGitHubTokenEnv = "GITHUB_TOKEN"
	DefaultGitLabTokenEnv = "GITLAB_TOKEN"
)

// Options selects and configures a forge.
type Options struct {
	// Kind is "github" or "gitlab".
	Kind string
	// Repo is "owner/name" on GitHub or the full project path on GitLab.
	Repo string
	// Token authenticates mutating calls. An empty token makes the forge unavailable.
	Token string
	// TokenEnv is the variable the token was read from, used in hints.
	TokenEnv string
	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise or self-hosted GitLab.
	BaseURL string
	// HTTPClient replaces the pooled client from go-cleanhttp.
	HTTPClient *http.Client
}

// New returns the forge named by opts.Kind.
func New(l log.Logger, opts Options) (backend.Forge, error) {
	switch strings.ToLower(opts.Kind) {
	case KindGitHub, "":
		return NewGitHub(l, opts)
	case KindGitLab:
		return NewGitLab(l, opts)
	}

	return nil, errors.New(UnknownForgeError{Kind: opts.Kind})
}

// TokenEnvFor returns the conventional token variable of a forge kind.
func TokenEnvFor(kind string) string {
	if strings.EqualFold(kind, KindGitLab) {
		return DefaultGitLabTokenEnv
	}

	return DefaultGitHubTokenEnv
}

func dryRunResult(l log.Logger, method, url string) *shell.Result {
	l.Infof("[dry-run] %s %s", method, url)
	return shell.DryRunResult(method, url)
}

func executed(method, url, message string, started time.Time) *shell.Result {
	return &shell.Result{
		Command:  []string{method, url},
		Message:  message,
		Duration: time.Since(started),
		Kind:     shell.KindExecuted,
	}
}

// UnknownForgeError is returned for an unsupported forge kind.
type UnknownForgeError struct {
	Kind string
}

func (err UnknownForgeError) Error() string {
	return fmt.Sprintf("unknown forge kind %q", err.Kind)
}

// Hint implements the hinter interface.
func (err UnknownForgeError) Hint() string {
	return `set forge.kind to "github" or "gitlab"`
}

// InvalidRepoError is returned when a repository slug cannot be split into owner and name.
type InvalidRepoError struct {
	Repo string
}

func (err InvalidRepoError) Error() string {
	return fmt.Sprintf("invalid repository %q, expected owner/name", err.Repo)
}

// Hint implements the hinter interface.
func (err InvalidRepoError) Hint() string {
	return "set forge.repo, e.g. repo = \"acme/widgets\""
}

// APIError is returned when a forge rejects a request.
type APIError struct {
	Forge      string
	Op         string
	TokenEnv   string
	StatusCode int
}

func (err APIError) Error() string {
	return fmt.Sprintf("%s %s failed with %d %s", err.Forge, err.Op, err.StatusCode, http.StatusText(err.StatusCode))
}

// Hint implements the hinter interface.
func (err APIError) Hint() string {
	switch err.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if err.TokenEnv != "" {
			return fmt.Sprintf("check that $%s holds a token with write access to the repository", err.TokenEnv)
		}

		return "check the forge token"
	case http.StatusNotFound:
		return "check forge.repo and that the token can see the repository"
	}

	return ""
}
