package release

import (
	"fmt"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/versioning"
)

type notesSection struct {
	title   string
	entries []string
}

// RenderNotes lists the commits of a release grouped by kind, for the body of a forge release.
// Release and merge commits are left out.
func RenderNotes(commits []backend.Commit) string {
	sections := []*notesSection{
		{title: "Breaking changes"},
		{title: "Features"},
		{title: "Bug fixes"},
		{title: "Other changes"},
	}

	for _, commit := range commits {
		if versioning.IsReleaseCommit(commit) {
			continue
		}

		parsed, ok := versioning.ParseConventional(commit)

		entry := parsed.Description
		if parsed.Scope != "" {
			entry = fmt.Sprintf("**%s:** %s", parsed.Scope, entry)
		}

		if len(commit.SHA) >= 7 {
			entry += " (" + commit.SHA[:7] + ")"
		}

		section := sections[3]

		switch {
		case parsed.Breaking:
			section = sections[0]
		case ok && parsed.Type == "feat":
			section = sections[1]
		case ok && parsed.Type == "fix":
			section = sections[2]
		}

		section.entries = append(section.entries, entry)
	}

	var sb strings.Builder

	for _, section := range sections {
		if len(section.entries) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n")
		}

		sb.WriteString("### " + section.title + "\n\n")

		for _, entry := range section.entries {
			sb.WriteString("- " + entry + "\n")
		}
	}

	if sb.Len() == 0 {
		return "No notable changes.\n"
	}

	return sb.String()
}
