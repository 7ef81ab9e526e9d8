// Package git implements the VCS backend. Reads of refs go through go-git; history queries and
// every mutation run the git CLI through the shell runner so that dry-run applies uniformly.
package git

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/shell"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

const (
	DefaultRemote = "origin"

	fieldSeparator  = "\x1f"
	recordSeparator = "\x1e"
	logFormat       = "--format=%H%x1f%an%x1f%s%x1f%b%x1e"
	logFieldsCount  = 4
)

var _ backend.VCS = (*Repository)(nil)

// Repository is the git checkout containing the workspace.
type Repository struct {
	logger  log.Logger
	runner  *shell.Runner
	WorkDir string
}

// NewRepository returns the VCS backend for the checkout containing workDir.
func NewRepository(l log.Logger, runner *shell.Runner, workDir string) *Repository {
	return &Repository{
		logger:  l,
		runner:  runner,
		WorkDir: workDir,
	}
}

// RequiresWorkDir returns an error if no working directory is set
func (r *Repository) RequiresWorkDir() error {
	if r.WorkDir == "" {
		return &WrappedError{
			Op:  "git",
			Err: ErrNoWorkDir,
		}
	}

	return nil
}

// open opens the repository with go-git, searching parent directories for the .git entry.
func (r *Repository) open() (*git.Repository, func(), error) {
	if err := r.RequiresWorkDir(); err != nil {
		return nil, nil, err
	}

	root, err := findRoot(r.WorkDir)
	if err != nil {
		return nil, nil, err
	}

	dotGit := filepath.Join(root, git.GitDirName)

	if info, err := os.Stat(dotGit); err == nil && !info.IsDir() {
		// Linked worktrees keep a .git file pointing at the common directory.
		repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
		if err != nil {
			return nil, nil, &WrappedError{Op: "git_open", Context: root, Err: err}
		}

		return repo, func() {}, nil
	}

	fs, err := osfs.New(root).Chroot(git.GitDirName)
	if err != nil {
		return nil, nil, &WrappedError{Op: "git_open", Context: root, Err: err}
	}

	s := filesystem.NewStorageWithOptions(fs, cache.NewObjectLRUDefault(), filesystem.Options{KeepDescriptors: true})

	repo, err := git.Open(s, osfs.New(root))
	if err != nil {
		s.Close() //nolint:errcheck
		return nil, nil, &WrappedError{Op: "git_open", Context: root, Err: err}
	}

	return repo, func() { s.Close() }, nil //nolint:errcheck
}

func findRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.New(err)
	}

	for current := dir; ; {
		if _, err := os.Stat(filepath.Join(current, git.GitDirName)); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", &WrappedError{Op: "git_open", Context: dir, Err: ErrNotRepository}
		}

		current = parent
	}
}

// CurrentSHA returns the commit HEAD points at.
func (r *Repository) CurrentSHA(_ context.Context) (string, error) {
	repo, closeRepo, err := r.open()
	if err != nil {
		return "", err
	}
	defer closeRepo()

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", &WrappedError{Op: "git_head", Err: ErrNoCommits}
	}

	if err != nil {
		return "", &WrappedError{Op: "git_head", Err: err}
	}

	return head.Hash().String(), nil
}

// Tags returns the short names of all tags, sorted.
func (r *Repository) Tags(_ context.Context) ([]string, error) {
	repo, closeRepo, err := r.open()
	if err != nil {
		return nil, err
	}
	defer closeRepo()

	iter, err := repo.Tags()
	if err != nil {
		return nil, &WrappedError{Op: "git_tags", Err: err}
	}
	defer iter.Close()

	var tags []string

	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	}); err != nil {
		return nil, &WrappedError{Op: "git_tags", Err: err}
	}

	sort.Strings(tags)

	return tags, nil
}

// TagExists reports whether the tag exists locally.
func (r *Repository) TagExists(_ context.Context, name string) (bool, error) {
	repo, closeRepo, err := r.open()
	if err != nil {
		return false, err
	}
	defer closeRepo()

	_, err = repo.Reference(plumbing.NewTagReferenceName(name), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}

	if err != nil {
		return false, &WrappedError{Op: "git_tag_exists", Context: name, Err: err}
	}

	return true, nil
}

// IsClean reports whether the work tree has no changes to tracked files.
func (r *Repository) IsClean(ctx context.Context) (bool, error) {
	stdout, err := r.read(ctx, "git_status", "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(stdout) == "", nil
}

// Log returns the commits reachable from HEAD and not from opts.Since, newest first.
func (r *Repository) Log(ctx context.Context, opts backend.LogOptions) ([]backend.Commit, error) {
	args := []string{"log", logFormat}

	if opts.MaxCount > 0 {
		args = append(args, "-n", strconv.Itoa(opts.MaxCount))
	}

	if opts.Since != "" {
		args = append(args, opts.Since+"..HEAD")
	} else {
		args = append(args, "HEAD")
	}

	if len(opts.Paths) > 0 {
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}

	stdout, err := r.read(ctx, "git_log", args...)
	if err != nil {
		return nil, err
	}

	return ParseLog(stdout)
}

// ParseLog parses the output of git log written with the record and field separators.
func ParseLog(output string) ([]backend.Commit, error) {
	var commits []backend.Commit

	for record := range strings.SplitSeq(output, recordSeparator) {
		record = strings.TrimLeft(record, "\n")
		if strings.TrimSpace(record) == "" {
			continue
		}

		fields := strings.SplitN(record, fieldSeparator, logFieldsCount)
		if len(fields) != logFieldsCount {
			return nil, &WrappedError{Op: "parse_log", Context: record, Err: ErrMalformedLogEntry}
		}

		commits = append(commits, backend.Commit{
			SHA:     fields[0],
			Author:  fields[1],
			Subject: fields[2],
			Body:    strings.TrimSpace(fields[3]),
		})
	}

	return commits, nil
}

// DiffFiles lists the files changed between since and HEAD.
func (r *Repository) DiffFiles(ctx context.Context, since string) ([]string, error) {
	if since == "" {
		since = plumbing.HEAD.String()
	}

	stdout, err := r.read(ctx, "git_diff", "diff", "--name-only", "--diff-filter=ACDMR", since, "HEAD")
	if err != nil {
		return nil, err
	}

	var files []string

	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}

	return files, nil
}

// Tag creates an annotated tag on HEAD.
func (r *Repository) Tag(ctx context.Context, name, message string, dryRun bool) (*shell.Result, error) {
	if message == "" {
		message = name
	}

	return r.runner.Run(ctx, shell.Command{
		Name:   "git",
		Args:   []string{"tag", "--annotate", name, "--message", message},
		Dir:    r.WorkDir,
		DryRun: dryRun,
	})
}

// Push pushes the branch and tags to the remote.
func (r *Repository) Push(ctx context.Context, opts backend.PushOptions, dryRun bool) (*shell.Result, error) {
	remote := opts.Remote
	if remote == "" {
		remote = DefaultRemote
	}

	args := []string{"push", remote}

	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}

	for _, tag := range opts.Tags {
		args = append(args, plumbing.NewTagReferenceName(tag).String())
	}

	return r.runner.Run(ctx, shell.Command{
		Name:   "git",
		Args:   args,
		Dir:    r.WorkDir,
		DryRun: dryRun,
	})
}

// read runs a read-only git command and returns its stdout. A non-zero exit is an error here since
// callers cannot act on partial output.
func (r *Repository) read(ctx context.Context, op string, args ...string) (string, error) {
	if err := r.RequiresWorkDir(); err != nil {
		return "", err
	}

	res, err := r.runner.Run(ctx, shell.Command{Name: "git", Args: args, Dir: r.WorkDir})
	if err != nil {
		return "", &WrappedError{Op: op, Err: errors.Join(ErrCommandSpawn, err)}
	}

	if !res.OK() {
		return "", &WrappedError{Op: op, Context: strings.TrimSpace(res.Stderr), Err: ErrCommandFailed}
	}

	return res.Stdout, nil
}
