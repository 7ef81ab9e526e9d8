package versioning_test

import (
	"context"
	"sync"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/shell"
)

// fakeVCS serves commits per package path and records the Since ref each log was asked for.
type fakeVCS struct {
	commits map[string][]backend.Commit
	since   map[string]string
	tags    []string
	mu      sync.Mutex
}

func newFakeVCS(tags ...string) *fakeVCS {
	return &fakeVCS{
		tags:    tags,
		commits: map[string][]backend.Commit{},
		since:   map[string]string{},
	}
}

func (vcs *fakeVCS) withCommits(path string, subjects ...string) *fakeVCS {
	for i, subject := range subjects {
		vcs.commits[path] = append(vcs.commits[path], backend.Commit{SHA: path + "-" + string(rune('a'+i)), Subject: subject})
	}

	return vcs
}

func (vcs *fakeVCS) sinceFor(path string) string {
	vcs.mu.Lock()
	defer vcs.mu.Unlock()

	return vcs.since[path]
}

func (vcs *fakeVCS) IsClean(context.Context) (bool, error)      { return true, nil }
func (vcs *fakeVCS) CurrentSHA(context.Context) (string, error) { return "abc123", nil }
func (vcs *fakeVCS) Tags(context.Context) ([]string, error)     { return vcs.tags, nil }

func (vcs *fakeVCS) Log(_ context.Context, opts backend.LogOptions) ([]backend.Commit, error) {
	vcs.mu.Lock()
	defer vcs.mu.Unlock()

	var commits []backend.Commit

	for _, path := range opts.Paths {
		vcs.since[path] = opts.Since
		commits = append(commits, vcs.commits[path]...)
	}

	return commits, nil
}

func (vcs *fakeVCS) TagExists(_ context.Context, name string) (bool, error) {
	for _, tag := range vcs.tags {
		if tag == name {
			return true, nil
		}
	}

	return false, nil
}

func (vcs *fakeVCS) Tag(_ context.Context, name, _ string, _ bool) (*shell.Result, error) {
	return shell.DryRunResult("git", "tag", name), nil
}

func (vcs *fakeVCS) Push(context.Context, backend.PushOptions, bool) (*shell.Result, error) {
	return shell.DryRunResult("git", "push"), nil
}

func (vcs *fakeVCS) DiffFiles(context.Context, string) ([]string, error) { return nil, nil }
