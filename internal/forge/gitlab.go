package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/internal/telemetry"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/hashicorp/go-cleanhttp"
)

const GitLabAPIURL = "https://gitlab.com/api/v4"

var _ backend.Forge = (*GitLab)(nil)

// GitLab is the GitLab v4 REST API. Pull requests are merge requests.
type GitLab struct {
	logger   log.Logger
	http     *http.Client
	baseURL  string
	project  string
	token    string
	tokenEnv string
}

// NewGitLab returns a GitLab forge for the project path opts.Repo.
func NewGitLab(l log.Logger, opts Options) (*GitLab, error) {
	if opts.Repo == "" || !strings.Contains(opts.Repo, "/") {
		return nil, errors.New(InvalidRepoError{Repo: opts.Repo})
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = GitLabAPIURL
	}

	tokenEnv := opts.TokenEnv
	if tokenEnv == "" {
		tokenEnv = DefaultGitLabTokenEnv
	}

	return &GitLab{
		logger:   l,
		http:     httpClient,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		project:  url.PathEscape(opts.Repo),
		token:    opts.Token,
		tokenEnv: tokenEnv,
	}, nil
}

func (gl *GitLab) Name() string {
	return KindGitLab
}

func (gl *GitLab) IsAvailable(_ context.Context) bool {
	return gl.token != ""
}

func (gl *GitLab) endpoint(format string, args ...any) string {
	return gl.baseURL + "/projects/" + gl.project + "/" + fmt.Sprintf(format, args...)
}

// do sends one request. found is false for a 404; other non-2xx responses are APIErrors.
func (gl *GitLab) do(ctx context.Context, op, method, endpoint string, in, out any) (found bool, err error) {
	err = telemetry.Collect(ctx, "forge_request", map[string]any{"forge": KindGitLab, "method": method, "url": endpoint}, func(ctx context.Context) error {
		var body io.Reader

		if in != nil {
			data, err := json.Marshal(in)
			if err != nil {
				return errors.New(err)
			}

			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return errors.New(err)
		}

		req.Header.Set("Accept", "application/json")

		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		if gl.token != "" {
			req.Header.Set("PRIVATE-TOKEN", gl.token)
		}

		resp, err := gl.http.Do(req)
		if err != nil {
			return errors.Errorf("gitlab %s: %w", op, err)
		}
		defer resp.Body.Close() //nolint:errcheck

		gl.logger.Tracef("%s %s: %d", method, endpoint, resp.StatusCode)

		if resp.StatusCode == http.StatusNotFound {
			return nil
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return errors.New(APIError{Forge: KindGitLab, Op: op, StatusCode: resp.StatusCode, TokenEnv: gl.tokenEnv})
		}

		found = true

		if out == nil {
			return nil
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return errors.Errorf("decoding gitlab %s response: %w", op, err)
		}

		return nil
	})

	return found, err
}

// mutate is do for calls where a 404 is an error.
func (gl *GitLab) mutate(ctx context.Context, op, method, endpoint string, in, out any) error {
	found, err := gl.do(ctx, op, method, endpoint, in, out)
	if err != nil {
		return err
	}

	if !found {
		return errors.New(APIError{Forge: KindGitLab, Op: op, StatusCode: http.StatusNotFound, TokenEnv: gl.tokenEnv})
	}

	return nil
}

func (gl *GitLab) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	return gl.do(ctx, "get release "+tag, http.MethodGet, gl.endpoint("releases/%s", url.PathEscape(tag)), nil, nil)
}

// CreateRelease creates a release for an existing tag. GitLab has no draft releases, so req.Draft is ignored.
func (gl *GitLab) CreateRelease(ctx context.Context, req backend.ReleaseRequest, dryRun bool) (*shell.Result, error) {
	endpoint := gl.endpoint("releases")
	if dryRun {
		return dryRunResult(gl.logger, http.MethodPost, endpoint), nil
	}

	if req.Draft {
		gl.logger.Debugf("GitLab does not support draft releases, creating %s as a regular release", req.Tag)
	}

	name := req.Title
	if name == "" {
		name = req.Tag
	}

	started := time.Now()

	var release struct {
		Links struct {
			Self string `json:"self"`
		} `json:"_links"`
	}

	payload := map[string]any{"tag_name": req.Tag, "name": name, "description": req.Body}
	if err := gl.mutate(ctx, "create release "+req.Tag, http.MethodPost, endpoint, payload, &release); err != nil {
		return nil, err
	}

	gl.logger.Infof("Created GitLab release %s", req.Tag)

	return executed(http.MethodPost, endpoint, release.Links.Self, started), nil
}

func (gl *GitLab) DeleteRelease(ctx context.Context, tag string, dryRun bool) (*shell.Result, error) {
	endpoint := gl.endpoint("releases/%s", url.PathEscape(tag))
	if dryRun {
		return dryRunResult(gl.logger, http.MethodDelete, endpoint), nil
	}

	started := time.Now()

	found, err := gl.do(ctx, "delete release "+tag, http.MethodDelete, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	if !found {
		return shell.NoOpResult(fmt.Sprintf("no GitLab release for %s", tag)), nil
	}

	return executed(http.MethodDelete, endpoint, "", started), nil
}

// CreatePR opens a merge request. The result message is its web URL.
func (gl *GitLab) CreatePR(ctx context.Context, req backend.PullRequestRequest, dryRun bool) (*shell.Result, error) {
	endpoint := gl.endpoint("merge_requests")
	if dryRun {
		return dryRunResult(gl.logger, http.MethodPost, endpoint), nil
	}

	title := req.Title
	if req.Draft && !strings.HasPrefix(title, "Draft:") {
		title = "Draft: " + title
	}

	payload := map[string]any{
		"source_branch": req.Head,
		"target_branch": req.Base,
		"title":         title,
		"description":   req.Body,
	}

	if len(req.Labels) > 0 {
		payload["labels"] = strings.Join(req.Labels, ",")
	}

	started := time.Now()

	var mr struct {
		WebURL string `json:"web_url"`
		IID    int    `json:"iid"`
	}

	if err := gl.mutate(ctx, "create merge request", http.MethodPost, endpoint, payload, &mr); err != nil {
		return nil, err
	}

	gl.logger.Infof("Opened merge request !%d: %s", mr.IID, mr.WebURL)

	return executed(http.MethodPost, endpoint, mr.WebURL, started), nil
}

func (gl *GitLab) MergePR(ctx context.Context, number int, dryRun bool) (*shell.Result, error) {
	endpoint := gl.endpoint("merge_requests/%d/merge", number)
	if dryRun {
		return dryRunResult(gl.logger, http.MethodPut, endpoint), nil
	}

	started := time.Now()

	var mr struct {
		State          string `json:"state"`
		MergeCommitSHA string `json:"merge_commit_sha"`
	}

	if err := gl.mutate(ctx, fmt.Sprintf("merge !%d", number), http.MethodPut, endpoint, map[string]any{"squash": true}, &mr); err != nil {
		return nil, err
	}

	if mr.State != "merged" {
		return &shell.Result{
			Command:    []string{http.MethodPut, endpoint},
			Message:    "merge request is " + mr.State,
			ReturnCode: 1,
			Duration:   time.Since(started),
		}, nil
	}

	return executed(http.MethodPut, endpoint, mr.MergeCommitSHA, started), nil
}

func (gl *GitLab) AddLabels(ctx context.Context, number int, labels []string, dryRun bool) (*shell.Result, error) {
	return gl.updateLabels(ctx, number, "add_labels", labels, dryRun)
}

func (gl *GitLab) RemoveLabels(ctx context.Context, number int, labels []string, dryRun bool) (*shell.Result, error) {
	return gl.updateLabels(ctx, number, "remove_labels", labels, dryRun)
}

func (gl *GitLab) updateLabels(ctx context.Context, number int, field string, labels []string, dryRun bool) (*shell.Result, error) {
	endpoint := gl.endpoint("merge_requests/%d", number)
	if dryRun {
		return dryRunResult(gl.logger, http.MethodPut, endpoint), nil
	}

	started := time.Now()

	joined := strings.Join(labels, ",")
	if err := gl.mutate(ctx, fmt.Sprintf("%s on !%d", field, number), http.MethodPut, endpoint, map[string]any{field: joined}, nil); err != nil {
		return nil, err
	}

	return executed(http.MethodPut, endpoint, joined, started), nil
}
