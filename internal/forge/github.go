package forge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v53/github"
	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/internal/telemetry"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

const (
	GitHubAPIURL = "https://api.github.com"

	defaultMergeMethod = "squash"
)

var _ backend.Forge = (*GitHub)(nil)

// GitHub is the GitHub releases and pull requests API.
type GitHub struct {
	logger   log.Logger
	client   *github.Client
	owner    string
	repo     string
	token    string
	tokenEnv string
}

// NewGitHub returns a GitHub forge for opts.Repo ("owner/name").
func NewGitHub(l log.Logger, opts Options) (*GitHub, error) {
	owner, repo, ok := strings.Cut(opts.Repo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, errors.New(InvalidRepoError{Repo: opts.Repo})
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}

	if opts.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	}

	client := github.NewClient(httpClient)

	if opts.BaseURL != "" && opts.BaseURL != GitHubAPIURL {
		baseURL, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, errors.Errorf("invalid GitHub base URL %q: %w", opts.BaseURL, err)
		}

		client.BaseURL = baseURL
	}

	tokenEnv := opts.TokenEnv
	if tokenEnv == "" {
		tokenEnv = DefaultGitHubTokenEnv
	}

	return &GitHub{
		logger:   l,
		client:   client,
		owner:    owner,
		repo:     repo,
		token:    opts.Token,
		tokenEnv: tokenEnv,
	}, nil
}

func (gh *GitHub) Name() string {
	return KindGitHub
}

// IsAvailable reports whether a token is configured. Reads work anonymously, mutations do not.
func (gh *GitHub) IsAvailable(_ context.Context) bool {
	return gh.token != ""
}

func (gh *GitHub) endpoint(format string, args ...any) string {
	return gh.client.BaseURL.String() + fmt.Sprintf("repos/%s/%s/", gh.owner, gh.repo) + fmt.Sprintf(format, args...)
}

func (gh *GitHub) apiError(op string, resp *github.Response, err error) error {
	code := statusCode(resp)
	if code == 0 {
		return errors.Errorf("github %s: %w", op, err)
	}

	return errors.Errorf("%w: %w", APIError{Forge: KindGitHub, Op: op, StatusCode: code, TokenEnv: gh.tokenEnv}, err)
}

func statusCode(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}

	return resp.StatusCode
}

func (gh *GitHub) releaseByTag(ctx context.Context, tag string) (*github.RepositoryRelease, error) {
	release, resp, err := gh.client.Repositories.GetReleaseByTag(ctx, gh.owner, gh.repo, tag)
	if err != nil {
		if statusCode(resp) == http.StatusNotFound {
			return nil, nil
		}

		return nil, gh.apiError("get release "+tag, resp, err)
	}

	return release, nil
}

func (gh *GitHub) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	var release *github.RepositoryRelease

	err := telemetry.Collect(ctx, "forge_release_exists", map[string]any{"forge": KindGitHub, "tag": tag}, func(ctx context.Context) (err error) {
		release, err = gh.releaseByTag(ctx, tag)
		return err
	})

	return release != nil, err
}

func (gh *GitHub) CreateRelease(ctx context.Context, req backend.ReleaseRequest, dryRun bool) (*shell.Result, error) {
	endpoint := gh.endpoint("releases")
	if dryRun {
		return dryRunResult(gh.logger, http.MethodPost, endpoint), nil
	}

	name := req.Title
	if name == "" {
		name = req.Tag
	}

	started := time.Now()

	var release *github.RepositoryRelease

	err := telemetry.Collect(ctx, "forge_create_release", map[string]any{"forge": KindGitHub, "tag": req.Tag}, func(ctx context.Context) error {
		created, resp, err := gh.client.Repositories.CreateRelease(ctx, gh.owner, gh.repo, &github.RepositoryRelease{
			TagName:    github.String(req.Tag),
			Name:       github.String(name),
			Body:       github.String(req.Body),
			Draft:      github.Bool(req.Draft),
			Prerelease: github.Bool(req.Prerelease),
		})
		if err != nil {
			return gh.apiError("create release "+req.Tag, resp, err)
		}

		release = created

		return nil
	})
	if err != nil {
		return nil, err
	}

	gh.logger.Infof("Created GitHub release %s: %s", req.Tag, release.GetHTMLURL())

	return executed(http.MethodPost, endpoint, release.GetHTMLURL(), started), nil
}

func (gh *GitHub) DeleteRelease(ctx context.Context, tag string, dryRun bool) (*shell.Result, error) {
	if dryRun {
		return dryRunResult(gh.logger, http.MethodDelete, gh.endpoint("releases/tags/%s", tag)), nil
	}

	started := time.Now()

	release, err := gh.releaseByTag(ctx, tag)
	if err != nil {
		return nil, err
	}

	if release == nil {
		return shell.NoOpResult(fmt.Sprintf("no GitHub release for %s", tag)), nil
	}

	endpoint := gh.endpoint("releases/%d", release.GetID())

	if resp, err := gh.client.Repositories.DeleteRelease(ctx, gh.owner, gh.repo, release.GetID()); err != nil {
		return nil, gh.apiError("delete release "+tag, resp, err)
	}

	return executed(http.MethodDelete, endpoint, "", started), nil
}

// CreatePR opens a pull request and applies req.Labels. The result message is the pull request URL.
func (gh *GitHub) CreatePR(ctx context.Context, req backend.PullRequestRequest, dryRun bool) (*shell.Result, error) {
	endpoint := gh.endpoint("pulls")
	if dryRun {
		return dryRunResult(gh.logger, http.MethodPost, endpoint), nil
	}

	started := time.Now()

	pr, resp, err := gh.client.PullRequests.Create(ctx, gh.owner, gh.repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
		Body:  github.String(req.Body),
		Draft: github.Bool(req.Draft),
	})
	if err != nil {
		return nil, gh.apiError("create pull request", resp, err)
	}

	if len(req.Labels) > 0 {
		if _, resp, err := gh.client.Issues.AddLabelsToIssue(ctx, gh.owner, gh.repo, pr.GetNumber(), req.Labels); err != nil {
			return nil, gh.apiError(fmt.Sprintf("label pull request #%d", pr.GetNumber()), resp, err)
		}
	}

	gh.logger.Infof("Opened pull request #%d: %s", pr.GetNumber(), pr.GetHTMLURL())

	return executed(http.MethodPost, endpoint, pr.GetHTMLURL(), started), nil
}

func (gh *GitHub) MergePR(ctx context.Context, number int, dryRun bool) (*shell.Result, error) {
	endpoint := gh.endpoint("pulls/%d/merge", number)
	if dryRun {
		return dryRunResult(gh.logger, http.MethodPut, endpoint), nil
	}

	started := time.Now()

	result, resp, err := gh.client.PullRequests.Merge(ctx, gh.owner, gh.repo, number, "", &github.PullRequestOptions{MergeMethod: defaultMergeMethod})
	if err != nil {
		return nil, gh.apiError(fmt.Sprintf("merge pull request #%d", number), resp, err)
	}

	if !result.GetMerged() {
		return &shell.Result{
			Command:    []string{http.MethodPut, endpoint},
			Message:    result.GetMessage(),
			ReturnCode: 1,
			Duration:   time.Since(started),
		}, nil
	}

	return executed(http.MethodPut, endpoint, result.GetSHA(), started), nil
}

func (gh *GitHub) AddLabels(ctx context.Context, number int, labels []string, dryRun bool) (*shell.Result, error) {
	endpoint := gh.endpoint("issues/%d/labels", number)
	if dryRun {
		return dryRunResult(gh.logger, http.MethodPost, endpoint), nil
	}

	started := time.Now()

	if _, resp, err := gh.client.Issues.AddLabelsToIssue(ctx, gh.owner, gh.repo, number, labels); err != nil {
		return nil, gh.apiError(fmt.Sprintf("label #%d", number), resp, err)
	}

	return executed(http.MethodPost, endpoint, strings.Join(labels, ","), started), nil
}

// RemoveLabels removes each label; labels that are not set are ignored.
func (gh *GitHub) RemoveLabels(ctx context.Context, number int, labels []string, dryRun bool) (*shell.Result, error) {
	endpoint := gh.endpoint("issues/%d/labels", number)
	if dryRun {
		return dryRunResult(gh.logger, http.MethodDelete, endpoint), nil
	}

	started := time.Now()

	for _, label := range labels {
		resp, err := gh.client.Issues.RemoveLabelForIssue(ctx, gh.owner, gh.repo, number, label)
		if err != nil {
			if statusCode(resp) == http.StatusNotFound {
				continue
			}

			return nil, gh.apiError(fmt.Sprintf("unlabel #%d", number), resp, err)
		}
	}

	return executed(http.MethodDelete, endpoint, strings.Join(labels, ","), started), nil
}
