// Package backend defines the protocols every ecosystem adapter implements: Workspace,
// PackageManager, Registry, Forge and VCS.
//
// The graph, versioning and runner logic is written once against these interfaces. The concrete
// adapters are selected per run through a Table keyed by ecosystem and injected through
// constructors; there is no process-wide registry of backends.
//
// Every mutating method takes a dryRun flag. When it is true an implementation must not write
// files, spawn side-effecting processes or send mutating requests, and must return a result with
// Kind shell.KindDryRun and a zero return code.
package backend

import (
	"context"
	"time"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/shell"
)

// Workspace discovers the packages of one ecosystem and rewrites their manifests.
type Workspace interface {
	// Ecosystem returns the ecosystem the workspace handles.
	Ecosystem() component.Ecosystem

	// Root returns the workspace root directory. Package paths are relative to it.
	Root() string

	// Discover scans the workspace for packages, skipping paths matching excludePatterns.
	Discover(ctx context.Context, excludePatterns []string) (component.Packages, error)

	// RewriteVersion sets the package version in the manifest and returns the previous one.
	// Ecosystems whose version lives outside the manifest (Go) implement this as a no-op;
	// callers must not assume the call mutates a file.
	RewriteVersion(ctx context.Context, manifestPath, newVersion string, dryRun bool) (string, error)

	// RewriteDependencyVersion updates the declared version of dep in the manifest.
	RewriteDependencyVersion(ctx context.Context, manifestPath, dep, newVersion string, dryRun bool) error
}

// PublishOptions configures a publish.
type PublishOptions struct {
	// DistTag is the npm style distribution tag, e.g. "next" for prereleases.
	DistTag string
	// RegistryURL overrides the default upload endpoint.
	RegistryURL string
	DryRun      bool
}

// PackageManager drives the ecosystem toolchain for one package.
//
// A non-nil error means the toolchain could not be run at all (a tooling error). A tool that ran
// and failed is reported through a Result whose OK method returns false.
type PackageManager interface {
	Name() string
	Build(ctx context.Context, pkg *component.Package, dryRun bool) (*shell.Result, error)
	Publish(ctx context.Context, pkg *component.Package, opts PublishOptions) (*shell.Result, error)
	Lock(ctx context.Context, dryRun bool) (*shell.Result, error)
	VersionBump(ctx context.Context, pkg *component.Package, newVersion string, dryRun bool) (*shell.Result, error)
	ResolveCheck(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error)
	SmokeTest(ctx context.Context, pkg *component.Package, version string, dryRun bool) (*shell.Result, error)
}

// PollOptions bounds a PollAvailable loop. Values outside the registry limits are clamped.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// ChecksumReport compares local artifact digests with the ones the registry serves.
type ChecksumReport struct {
	Mismatched map[string]string
	Matched    []string
	Missing    []string
	// Unsupported is true when the registry exposes no digests to compare with.
	Unsupported bool
}

// OK reports whether every local artifact matched.
func (report *ChecksumReport) OK() bool {
	return report.Unsupported || (len(report.Mismatched) == 0 && len(report.Missing) == 0)
}

// Registry queries and mutates a package index.
type Registry interface {
	Name() string
	CheckPublished(ctx context.Context, name, version string) (bool, error)
	// PollAvailable polls until the version is served or the timeout elapses. It returns false
	// without error on timeout and honors ctx cancellation.
	PollAvailable(ctx context.Context, name, version string, opts PollOptions) (bool, error)
	ProjectExists(ctx context.Context, name string) (bool, error)
	LatestVersion(ctx context.Context, name string) (string, error)
	// VerifyChecksum compares local digests, keyed by artifact file name, with the registry ones.
	VerifyChecksum(ctx context.Context, name, version string, local map[string]string) (*ChecksumReport, error)
	ListVersions(ctx context.Context, name string) ([]string, error)
	// YankVersion returns false, never an error, when the registry does not support yanking.
	YankVersion(ctx context.Context, name, version, reason string, dryRun bool) (bool, error)
}

// ReleaseRequest describes a forge release.
type ReleaseRequest struct {
	Tag        string
	Title      string
	Body       string
	Draft      bool
	Prerelease bool
}

// PullRequestRequest describes a pull request to open.
type PullRequestRequest struct {
	Title  string
	Body   string
	Head   string
	Base   string
	Labels []string
	Draft  bool
}

// Forge is a code hosting platform's release and pull request API.
type Forge interface {
	Name() string
	// IsAvailable reports whether the forge is configured with credentials.
	IsAvailable(ctx context.Context) bool
	ReleaseExists(ctx context.Context, tag string) (bool, error)
	CreateRelease(ctx context.Context, req ReleaseRequest, dryRun bool) (*shell.Result, error)
	DeleteRelease(ctx context.Context, tag string, dryRun bool) (*shell.Result, error)
	// CreatePR opens a pull request; the result Message holds its URL.
	CreatePR(ctx context.Context, req PullRequestRequest, dryRun bool) (*shell.Result, error)
	MergePR(ctx context.Context, number int, dryRun bool) (*shell.Result, error)
	AddLabels(ctx context.Context, number int, labels []string, dryRun bool) (*shell.Result, error)
	RemoveLabels(ctx context.Context, number int, labels []string, dryRun bool) (*shell.Result, error)
}

// Commit is one entry of the VCS log.
type Commit struct {
	SHA     string
	Author  string
	Subject string
	Body    string
}

// LogOptions scopes a VCS log.
type LogOptions struct {
	// Since is the exclusive starting ref. Empty means the whole history.
	Since string
	// Paths restricts the log to commits touching these paths, relative to the repository root.
	Paths    []string
	MaxCount int
}

// PushOptions configures a push.
type PushOptions struct {
	Remote string
	Branch string
	Tags   []string
}

// VCS is the version control system of the workspace.
type VCS interface {
	IsClean(ctx context.Context) (bool, error)
	CurrentSHA(ctx context.Context) (string, error)
	Log(ctx context.Context, opts LogOptions) ([]Commit, error)
	Tags(ctx context.Context) ([]string, error)
	TagExists(ctx context.Context, name string) (bool, error)
	Tag(ctx context.Context, name, message string, dryRun bool) (*shell.Result, error)
	Push(ctx context.Context, opts PushOptions, dryRun bool) (*shell.Result, error)
	// DiffFiles lists the files changed since the given ref.
	DiffFiles(ctx context.Context, since string) ([]string, error)
}
