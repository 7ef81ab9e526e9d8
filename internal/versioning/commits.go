package versioning

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
)

var (
	conventionalHeader = regexp.MustCompile(`^(?P<type>[A-Za-z]+)(?:\((?P<scope>[^)]*)\))?(?P<breaking>!)?:\s*(?P<description>\S.*)$`)
	breakingFooter     = regexp.MustCompile(`(?m)^BREAKING[ -]CHANGE:\s`)
)

// ConventionalCommit is a commit subject parsed with the conventional commit grammar.
type ConventionalCommit struct {
	Type        string
	Scope       string
	Description string
	Breaking    bool
}

// ParseConventional parses a commit. The second value is false for subjects outside the grammar.
func ParseConventional(commit backend.Commit) (ConventionalCommit, bool) {
	match := conventionalHeader.FindStringSubmatch(strings.TrimSpace(commit.Subject))
	breaking := breakingFooter.MatchString(commit.Body)

	if match == nil {
		return ConventionalCommit{Description: commit.Subject, Breaking: breaking}, false
	}

	return ConventionalCommit{
		Type:        strings.ToLower(match[conventionalHeader.SubexpIndex("type")]),
		Scope:       match[conventionalHeader.SubexpIndex("scope")],
		Description: match[conventionalHeader.SubexpIndex("description")],
		Breaking:    breaking || match[conventionalHeader.SubexpIndex("breaking")] != "",
	}, true
}

// IsReleaseCommit reports whether the commit was produced by a release run or a merge, neither of
// which qualifies for a bump.
func IsReleaseCommit(commit backend.Commit) bool {
	subject := strings.TrimSpace(commit.Subject)

	if strings.HasPrefix(subject, "Merge ") {
		return true
	}

	parsed, ok := ParseConventional(commit)

	return ok && parsed.Type == "chore" && parsed.Scope == "release"
}

// Classify returns the bump a single commit asks for, none for non-qualifying commits.
func Classify(commit backend.Commit) Bump {
	if IsReleaseCommit(commit) {
		return BumpNone
	}

	parsed, ok := ParseConventional(commit)

	switch {
	case parsed.Breaking:
		return BumpMajor
	case ok && parsed.Type == "feat":
		return BumpMinor
	}

	return BumpPatch
}

// ClassifyAll returns the highest bump of the commits and a reason naming the commit that
// produced it.
func ClassifyAll(commits []backend.Commit) (Bump, string) {
	var (
		result  = BumpNone
		trigger backend.Commit
	)

	for _, commit := range commits {
		if bump := Classify(commit); result.Less(bump) {
			result, trigger = bump, commit
		}
	}

	if result.IsNone() {
		return BumpNone, "no qualifying commits"
	}

	return result, fmt.Sprintf("%s: %s (%s)", result, strings.TrimSpace(trigger.Subject), shortSHA(trigger.SHA))
}

func shortSHA(sha string) string {
	const length = 7

	if len(sha) > length {
		return sha[:length]
	}

	return sha
}
