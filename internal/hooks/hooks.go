// Package hooks merges and runs the user-defined commands attached to release lifecycle events.
package hooks

import (
	"slices"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/errors"
)

// Event is a named point in the release lifecycle.
type Event string

const (
	BeforePrepare Event = "before_prepare"
	BeforePublish Event = "before_publish"
	AfterPublish  Event = "after_publish"
	AfterTag      Event = "after_tag"
)

// Events lists every lifecycle event in pipeline order.
var Events = []Event{BeforePrepare, BeforePublish, AfterPublish, AfterTag}

// ParseEvent returns the event with the given name.
func ParseEvent(str string) (Event, bool) {
	event := Event(strings.TrimSpace(str))

	return event, slices.Contains(Events, event)
}

// MergeMode decides how hooks of several configuration tiers combine.
type MergeMode string

const (
	// MergeConcat runs the commands of every tier, root first.
	MergeConcat MergeMode = "concat"
	// MergeReplace runs only the commands of the most specific tier defining the event.
	MergeReplace MergeMode = "replace"
)

// ParseMergeMode returns the mode with the given name. An empty name is MergeConcat.
func ParseMergeMode(str string) (MergeMode, error) {
	switch mode := MergeMode(strings.ToLower(strings.TrimSpace(str))); mode {
	case "", MergeConcat:
		return MergeConcat, nil
	case MergeReplace:
		return mode, nil
	}

	return "", errors.Errorf("unknown hook merge mode %q, expected %q or %q", str, MergeConcat, MergeReplace)
}

// Hooks maps an event to its command templates. An event present with an empty list is defined but
// runs nothing, which in replace mode clears the commands of less specific tiers.
type Hooks map[Event][]string

// Merge combines tiers ordered from the least specific (root) to the most specific (package).
func Merge(mode MergeMode, tiers ...Hooks) Hooks {
	merged := make(Hooks)

	for _, tier := range tiers {
		for event, commands := range tier {
			if mode == MergeReplace {
				merged[event] = slices.Clone(commands)
				continue
			}

			merged[event] = append(merged[event], commands...)
		}
	}

	return merged
}

// Vars are the values substituted into command templates.
type Vars struct {
	Version string
	Name    string
	Tag     string
}

// Expand substitutes ${version}, ${name} and ${tag} in template.
func Expand(template string, vars Vars) string {
	return strings.NewReplacer(
		"${version}", vars.Version,
		"${name}", vars.Name,
		"${tag}", vars.Tag,
	).Replace(template)
}
