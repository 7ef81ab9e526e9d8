// Package graph builds the internal dependency graph of the workspace packages and derives
// the publish order from it.
//
// The graph is derived, never authoritative: it is a mapping from package name to package plus
// the "depends on" adjacency computed from Package.InternalDeps. Every traversal iterates names in
// ascending order so that the publish order is reproducible across runs.
package graph

import (
	"slices"
	"sort"
	"strings"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
)

// Graph is the dependency graph of a set of packages.
type Graph struct {
	packages   map[string]*component.Package
	edges      map[string][]string
	orphans    map[string][]string
	duplicates map[string][]string
	names      []string
}

// Build builds the graph from the packages' internal dependencies.
func Build(pkgs component.Packages) *Graph {
	g := &Graph{
		packages:   make(map[string]*component.Package, len(pkgs)),
		edges:      make(map[string][]string, len(pkgs)),
		orphans:    make(map[string][]string),
		duplicates: make(map[string][]string),
	}

	for _, pkg := range pkgs {
		if existing, ok := g.packages[pkg.Name]; ok {
			if len(g.duplicates[pkg.Name]) == 0 {
				g.duplicates[pkg.Name] = []string{existing.Path}
			}

			g.duplicates[pkg.Name] = append(g.duplicates[pkg.Name], pkg.Path)

			continue
		}

		g.packages[pkg.Name] = pkg
		g.names = append(g.names, pkg.Name)
	}

	sort.Strings(g.names)

	for _, name := range g.names {
		var deps, orphans []string

		for _, dep := range g.packages[name].InternalDeps {
			if _, ok := g.packages[dep]; ok {
				deps = append(deps, dep)
			} else {
				orphans = append(orphans, dep)
			}
		}

		slices.Sort(deps)
		g.edges[name] = slices.Compact(deps)

		if len(orphans) > 0 {
			slices.Sort(orphans)
			g.orphans[name] = slices.Compact(orphans)
		}
	}

	return g
}

// Subgraph returns the graph restricted to the given package names. Edges to packages outside
// the subgraph are dropped from the ordering and are not reported as orphans.
func (g *Graph) Subgraph(names []string) *Graph {
	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := g.packages[name]; ok {
			keep[name] = struct{}{}
		}
	}

	sub := &Graph{
		packages:   make(map[string]*component.Package, len(keep)),
		edges:      make(map[string][]string, len(keep)),
		orphans:    make(map[string][]string),
		duplicates: make(map[string][]string),
	}

	for _, name := range g.names {
		if _, ok := keep[name]; !ok {
			continue
		}

		sub.packages[name] = g.packages[name]
		sub.names = append(sub.names, name)

		var deps []string

		for _, dep := range g.edges[name] {
			if _, ok := keep[dep]; ok {
				deps = append(deps, dep)
			}
		}

		sub.edges[name] = deps

		if orphans, ok := g.orphans[name]; ok {
			sub.orphans[name] = orphans
		}
	}

	return sub
}

// Names returns the package names in ascending order.
func (g *Graph) Names() []string {
	return slices.Clone(g.names)
}

// Package returns the package with the given name, or nil.
func (g *Graph) Package(name string) *component.Package {
	return g.packages[name]
}

// Packages returns the graph packages ordered by name.
func (g *Graph) Packages() component.Packages {
	pkgs := make(component.Packages, 0, len(g.names))
	for _, name := range g.names {
		pkgs = append(pkgs, g.packages[name])
	}

	return pkgs
}

// Dependencies returns the direct internal dependencies of name that exist in the graph.
func (g *Graph) Dependencies(name string) []string {
	return slices.Clone(g.edges[name])
}

// Dependents returns the packages that directly depend on name.
func (g *Graph) Dependents(name string) []string {
	var dependents []string

	for _, other := range g.names {
		if other != name && slices.Contains(g.edges[other], name) {
			dependents = append(dependents, other)
		}
	}

	return dependents
}

// TransitiveDependents returns every package that depends on name, directly or not, sorted by name.
func (g *Graph) TransitiveDependents(name string) []string {
	seen := map[string]struct{}{name: {}}
	queue := []string{name}

	var result []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dependent := range g.Dependents(current) {
			if _, ok := seen[dependent]; ok {
				continue
			}

			seen[dependent] = struct{}{}
			result = append(result, dependent)
			queue = append(queue, dependent)
		}
	}

	sort.Strings(result)

	return result
}

// SelfDeps returns the packages listing themselves as internal dependencies.
func (g *Graph) SelfDeps() []string {
	var result []string

	for _, name := range g.names {
		if slices.Contains(g.edges[name], name) {
			result = append(result, name)
		}
	}

	return result
}

// OrphanDeps returns, per package, the internal dependencies that do not resolve to a workspace package.
func (g *Graph) OrphanDeps() map[string][]string {
	result := make(map[string][]string, len(g.orphans))
	for name, orphans := range g.orphans {
		result[name] = slices.Clone(orphans)
	}

	return result
}

// Duplicates returns the package names declared by more than one package, with their paths.
func (g *Graph) Duplicates() map[string][]string {
	result := make(map[string][]string, len(g.duplicates))
	for name, paths := range g.duplicates {
		result[name] = slices.Clone(paths)
	}

	return result
}

// Cycles returns every distinct dependency cycle as a full path whose first element is repeated
// at the end, e.g. [a b c a]. Each cycle is rotated to start at its smallest name. Self
// dependencies are reported by SelfDeps instead.
func (g *Graph) Cycles() [][]string {
	const (
		unvisited = iota
		inStack
		done
	)

	var (
		state  = make(map[string]int, len(g.names))
		stack  []string
		seen   = map[string]struct{}{}
		cycles [][]string
		visit  func(name string)
	)

	visit = func(name string) {
		state[name] = inStack
		stack = append(stack, name)

		for _, dep := range g.edges[name] {
			if dep == name {
				continue
			}

			switch state[dep] {
			case unvisited:
				visit(dep)
			case inStack:
				idx := slices.Index(stack, dep)
				cycle := normalizeCycle(stack[idx:])

				key := joinKey(cycle)
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
	}

	for _, name := range g.names {
		if state[name] == unvisited {
			visit(name)
		}
	}

	return cycles
}

// TopoOrder returns every package exactly once, dependencies before their dependents.
// Independent packages are ordered by name. A self dependency or a cycle is returned as an error.
func (g *Graph) TopoOrder() ([]string, error) {
	if selfDeps := g.SelfDeps(); len(selfDeps) > 0 {
		return nil, errors.New(SelfDependencyError(selfDeps))
	}

	var (
		visited = make(map[string]bool, len(g.names))
		onPath  = make(map[string]bool, len(g.names))
		path    []string
		order   = make([]string, 0, len(g.names))
		visit   func(name string) error
	)

	visit = func(name string) error {
		if onPath[name] {
			idx := slices.Index(path, name)
			cycle := append(slices.Clone(path[idx:]), name)

			return errors.New(DependencyCycleError(cycle))
		}

		if visited[name] {
			return nil
		}

		onPath[name] = true
		path = append(path, name)

		for _, dep := range g.edges[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		onPath[name] = false
		visited[name] = true
		order = append(order, name)

		return nil
	}

	for _, name := range g.names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// Waves groups the packages in topological levels: a package's wave is one more than the
// highest wave of its dependencies. Packages within a wave are independent and sorted by name.
func (g *Graph) Waves() ([][]string, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(order))
	maxLevel := -1

	for _, name := range order {
		lvl := 0

		for _, dep := range g.edges[name] {
			if level[dep]+1 > lvl {
				lvl = level[dep] + 1
			}
		}

		level[name] = lvl
		maxLevel = max(maxLevel, lvl)
	}

	waves := make([][]string, maxLevel+1)
	for _, name := range g.names {
		waves[level[name]] = append(waves[level[name]], name)
	}

	return waves, nil
}

// Validation is the outcome of Validate.
type Validation struct {
	Orphans map[string][]string
	Order   []string
	Waves   [][]string
}

// Validate checks the graph for fatal conditions. Duplicate names, self dependencies and cycles are
// returned as errors; orphan dependencies are warnings returned in the Validation.
func (g *Graph) Validate() (*Validation, error) {
	if len(g.duplicates) > 0 {
		names := make([]string, 0, len(g.duplicates))
		for name := range g.duplicates {
			names = append(names, name)
		}

		sort.Strings(names)

		return nil, errors.New(DuplicatePackageError{Name: names[0], Paths: g.duplicates[names[0]]})
	}

	if selfDeps := g.SelfDeps(); len(selfDeps) > 0 {
		return nil, errors.New(SelfDependencyError(selfDeps))
	}

	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, errors.New(DependencyCycleError(cycles[0]))
	}

	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	waves, err := g.Waves()
	if err != nil {
		return nil, err
	}

	return &Validation{
		Order:   order,
		Waves:   waves,
		Orphans: g.OrphanDeps(),
	}, nil
}

func normalizeCycle(path []string) []string {
	minIdx := 0
	for i, name := range path {
		if name < path[minIdx] {
			minIdx = i
		}
	}

	cycle := make([]string, 0, len(path)+1)
	cycle = append(cycle, path[minIdx:]...)
	cycle = append(cycle, path[:minIdx]...)
	cycle = append(cycle, cycle[0])

	return cycle
}

func joinKey(cycle []string) string {
	return strings.Join(cycle, "\x00")
}
