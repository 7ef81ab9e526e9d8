package backend

import (
	"fmt"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
)

// Set groups the backends of one ecosystem.
type Set struct {
	Workspace      Workspace
	PackageManager PackageManager
	Registry       Registry
	// RequiredEnv lists environment variables that must be set to publish, e.g. registry tokens.
	RequiredEnv []string
}

// Ecosystem returns the ecosystem of the set.
func (set *Set) Ecosystem() component.Ecosystem {
	return set.Workspace.Ecosystem()
}

// Table is the registration table of backends keyed by ecosystem.
type Table map[component.Ecosystem]*Set

// NewTable registers the given sets. A later set for the same ecosystem replaces an earlier one.
func NewTable(sets ...*Set) Table {
	table := make(Table, len(sets))

	for _, set := range sets {
		if set == nil || set.Workspace == nil {
			continue
		}

		table[set.Ecosystem()] = set
	}

	return table
}

// Get returns the set registered for eco.
func (table Table) Get(eco component.Ecosystem) (*Set, error) {
	set, ok := table[eco]
	if !ok {
		return nil, errors.New(UnknownEcosystemError(eco))
	}

	return set, nil
}

// Ecosystems returns the registered ecosystems in the canonical order.
func (table Table) Ecosystems() []component.Ecosystem {
	var ecosystems []component.Ecosystem

	for _, eco := range component.AllEcosystems {
		if _, ok := table[eco]; ok {
			ecosystems = append(ecosystems, eco)
		}
	}

	return ecosystems
}

// UnknownEcosystemError is returned when no backend set is registered for an ecosystem.
type UnknownEcosystemError component.Ecosystem

func (err UnknownEcosystemError) Error() string {
	return fmt.Sprintf("no backends registered for ecosystem %q", string(err))
}

// Hint implements the hinter interface.
func (err UnknownEcosystemError) Hint() string {
	return "enable the ecosystem in releasekit.toml or remove its packages from the workspace"
}
