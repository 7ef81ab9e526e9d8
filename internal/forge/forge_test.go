package forge_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/forge"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type route struct {
	body   string
	status int
}

type fakeAPI struct {
	routes   map[string]route
	requests []string
	payloads map[string]map[string]any
	headers  http.Header
	mu       sync.Mutex
}

func newFakeAPI(t *testing.T, routes map[string]route) (*fakeAPI, *httptest.Server) {
	t.Helper()

	api := &fakeAPI{routes: routes, payloads: map[string]map[string]any{}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.EscapedPath()

		api.mu.Lock()
		api.requests = append(api.requests, key)
		api.headers = r.Header.Clone()

		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			payload := map[string]any{}
			if err := json.Unmarshal(data, &payload); err == nil {
				api.payloads[key] = payload
			}
		}
		api.mu.Unlock()

		rt, ok := api.routes[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "Not Found"}`)) //nolint:errcheck

			return
		}

		w.Header().Set("Content-Type", "application/json")

		if rt.status != 0 {
			w.WriteHeader(rt.status)
		}

		w.Write([]byte(rt.body)) //nolint:errcheck
	}))
	t.Cleanup(server.Close)

	return api, server
}

func (api *fakeAPI) calls() []string {
	api.mu.Lock()
	defer api.mu.Unlock()

	return append([]string(nil), api.requests...)
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := forge.New(log.Discard(), forge.Options{Kind: "bitbucket", Repo: "acme/widgets"})

	var unknownErr forge.UnknownForgeError
	require.ErrorAs(t, err, &unknownErr)
	assert.NotEmpty(t, errors.Hint(err))

	_, err = forge.New(log.Discard(), forge.Options{Kind: "github", Repo: "widgets"})

	var repoErr forge.InvalidRepoError
	require.ErrorAs(t, err, &repoErr)

	f, err := forge.New(log.Discard(), forge.Options{Kind: "GitLab", Repo: "acme/platform/widgets"})
	require.NoError(t, err)
	assert.Equal(t, "gitlab", f.Name())
	assert.False(t, f.IsAvailable(context.Background()))

	assert.Equal(t, "GITLAB_TOKEN", forge.TokenEnvFor("gitlab"))
	assert.Equal(t, "GITHUB_TOKEN", forge.TokenEnvFor(""))
}

func TestGitHubReleases(t *testing.T) {
	t.Parallel()

	api, server := newFakeAPI(t, map[string]route{
		"GET /repos/acme/widgets/releases/tags/core-v1.0.0": {body: `{"id": 42, "tag_name": "core-v1.0.0"}`},
		"POST /repos/acme/widgets/releases":                 {body: `{"id": 43, "html_url": "https://github.com/acme/widgets/releases/tag/core-v1.1.0"}`, status: http.StatusCreated},
		"DELETE /repos/acme/widgets/releases/42":            {status: http.StatusNoContent},
	})

	gh, err := forge.NewGitHub(log.Discard(), forge.Options{Repo: "acme/widgets", Token: "secret", BaseURL: server.URL})
	require.NoError(t, err)
	assert.True(t, gh.IsAvailable(context.Background()))

	ctx := context.Background()

	exists, err := gh.ReleaseExists(ctx, "core-v1.0.0")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = gh.ReleaseExists(ctx, "core-v9.9.9")
	require.NoError(t, err)
	assert.False(t, exists)

	res, err := gh.CreateRelease(ctx, backend.ReleaseRequest{Tag: "core-v1.1.0", Body: "notes", Prerelease: true}, false)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "https://github.com/acme/widgets/releases/tag/core-v1.1.0", res.Message)

	payload := api.payloads["POST /repos/acme/widgets/releases"]
	assert.Equal(t, "core-v1.1.0", payload["tag_name"])
	assert.Equal(t, "core-v1.1.0", payload["name"])
	assert.Equal(t, "notes", payload["body"])
	assert.Equal(t, true, payload["prerelease"])
	assert.Equal(t, "Bearer secret", api.headers.Get("Authorization"))

	res, err = gh.DeleteRelease(ctx, "core-v1.0.0", false)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Contains(t, api.calls(), "DELETE /repos/acme/widgets/releases/42")

	res, err = gh.DeleteRelease(ctx, "core-v9.9.9", false)
	require.NoError(t, err)
	assert.True(t, res.IsNoOp())
}

func TestGitHubPullRequests(t *testing.T) {
	t.Parallel()

	api, server := newFakeAPI(t, map[string]route{
		"POST /repos/acme/widgets/pulls":                     {body: `{"number": 7, "html_url": "https://github.com/acme/widgets/pull/7"}`, status: http.StatusCreated},
		"POST /repos/acme/widgets/issues/7/labels":           {body: `[{"name": "release"}]`},
		"PUT /repos/acme/widgets/pulls/7/merge":              {body: `{"merged": true, "sha": "abc123"}`},
		"PUT /repos/acme/widgets/pulls/8/merge":              {body: `{"merged": false, "message": "not mergeable"}`},
		"DELETE /repos/acme/widgets/issues/7/labels/pending": {body: `[]`},
	})

	gh, err := forge.NewGitHub(log.Discard(), forge.Options{Repo: "acme/widgets", Token: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	res, err := gh.CreatePR(ctx, backend.PullRequestRequest{Title: "chore(release): v1.1.0", Head: "release", Base: "main", Labels: []string{"release"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/widgets/pull/7", res.Message)
	assert.Equal(t, []string{"POST /repos/acme/widgets/pulls", "POST /repos/acme/widgets/issues/7/labels"}, api.calls())

	res, err = gh.MergePR(ctx, 7, false)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "abc123", res.Message)

	res, err = gh.MergePR(ctx, 8, false)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, "not mergeable", res.Message)

	res, err = gh.RemoveLabels(ctx, 7, []string{"pending", "missing"}, false)
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestGitHubUnauthorized(t *testing.T) {
	t.Parallel()

	_, server := newFakeAPI(t, map[string]route{
		"POST /repos/acme/widgets/releases": {body: `{"message": "Bad credentials"}`, status: http.StatusUnauthorized},
	})

	gh, err := forge.NewGitHub(log.Discard(), forge.Options{Repo: "acme/widgets", BaseURL: server.URL, TokenEnv: "RELEASE_TOKEN"})
	require.NoError(t, err)
	assert.False(t, gh.IsAvailable(context.Background()))

	_, err = gh.CreateRelease(context.Background(), backend.ReleaseRequest{Tag: "v1.0.0"}, false)

	var apiErr forge.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, errors.Hint(err), "$RELEASE_TOKEN")
}

func TestDryRunSendsNoRequests(t *testing.T) {
	t.Parallel()

	api, server := newFakeAPI(t, nil)

	gh, err := forge.NewGitHub(log.Discard(), forge.Options{Repo: "acme/widgets", Token: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	gl, err := forge.NewGitLab(log.Discard(), forge.Options{Repo: "acme/widgets", Token: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	for _, f := range []backend.Forge{gh, gl} {
		results := []func() (any, error){
			func() (any, error) { return f.CreateRelease(ctx, backend.ReleaseRequest{Tag: "v1.0.0"}, true) },
			func() (any, error) { return f.DeleteRelease(ctx, "v1.0.0", true) },
			func() (any, error) { return f.CreatePR(ctx, backend.PullRequestRequest{Title: "release"}, true) },
			func() (any, error) { return f.MergePR(ctx, 1, true) },
			func() (any, error) { return f.AddLabels(ctx, 1, []string{"a"}, true) },
			func() (any, error) { return f.RemoveLabels(ctx, 1, []string{"a"}, true) },
		}

		for _, call := range results {
			_, err := call()
			require.NoError(t, err, f.Name())
		}

		res, err := f.CreateRelease(ctx, backend.ReleaseRequest{Tag: "v1.0.0"}, true)
		require.NoError(t, err)
		assert.True(t, res.IsDryRun(), f.Name())
		assert.True(t, res.OK(), f.Name())
	}

	assert.Empty(t, api.calls())
}

func TestGitLab(t *testing.T) {
	t.Parallel()

	const project = "/projects/acme%2Fplatform%2Fwidgets"

	api, server := newFakeAPI(t, map[string]route{
		"GET " + project + "/releases/core-v1.0.0":    {body: `{"tag_name": "core-v1.0.0"}`},
		"POST " + project + "/releases":               {body: `{"_links": {"self": "https://gitlab.com/acme/platform/widgets/-/releases/core-v1.1.0"}}`, status: http.StatusCreated},
		"DELETE " + project + "/releases/core-v1.0.0": {body: `{}`},
		"POST " + project + "/merge_requests":         {body: `{"iid": 3, "web_url": "https://gitlab.com/acme/platform/widgets/-/merge_requests/3"}`, status: http.StatusCreated},
		"PUT " + project + "/merge_requests/3/merge":  {body: `{"state": "merged", "merge_commit_sha": "def456"}`},
		"PUT " + project + "/merge_requests/3":        {body: `{}`},
	})

	gl, err := forge.NewGitLab(log.Discard(), forge.Options{Repo: "acme/platform/widgets", Token: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()

	exists, err := gl.ReleaseExists(ctx, "core-v1.0.0")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = gl.ReleaseExists(ctx, "core-v2.0.0")
	require.NoError(t, err)
	assert.False(t, exists)

	res, err := gl.CreateRelease(ctx, backend.ReleaseRequest{Tag: "core-v1.1.0", Title: "core 1.1.0", Body: "notes"}, false)
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.com/acme/platform/widgets/-/releases/core-v1.1.0", res.Message)
	assert.Equal(t, "secret", api.headers.Get("PRIVATE-TOKEN"))
	assert.Equal(t, map[string]any{"tag_name": "core-v1.1.0", "name": "core 1.1.0", "description": "notes"}, api.payloads["POST "+project+"/releases"])

	res, err = gl.DeleteRelease(ctx, "core-v1.0.0", false)
	require.NoError(t, err)
	assert.False(t, res.IsNoOp())

	res, err = gl.DeleteRelease(ctx, "core-v2.0.0", false)
	require.NoError(t, err)
	assert.True(t, res.IsNoOp())

	res, err = gl.CreatePR(ctx, backend.PullRequestRequest{Title: "release", Head: "release", Base: "main", Labels: []string{"release", "autorelease"}, Draft: true}, false)
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.com/acme/platform/widgets/-/merge_requests/3", res.Message)

	payload := api.payloads["POST "+project+"/merge_requests"]
	assert.Equal(t, "Draft: release", payload["title"])
	assert.Equal(t, "release,autorelease", payload["labels"])

	res, err = gl.MergePR(ctx, 3, false)
	require.NoError(t, err)
	assert.Equal(t, "def456", res.Message)

	_, err = gl.AddLabels(ctx, 3, []string{"released"}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"add_labels": "released"}, api.payloads["PUT "+project+"/merge_requests/3"])

	_, err = gl.MergePR(ctx, 4, false)

	var apiErr forge.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
