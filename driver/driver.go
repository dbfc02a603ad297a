package driver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bakegraph/bake/graph"
)

// Config is the build configuration (platform, debug/release, flags, …)
// threaded through every driver callback. It is deliberately opaque here:
// drivers only need to pass it along to the Filesystem/Process utility
// collaborators (spec §6), which this module does not implement.
type Config map[string]string

// Impl holds the lifecycle callbacks a driver registers via the API (spec
// §4.3): init, artefact, link_to_lib, setup, generate, prebuild, postbuild,
// clean. Each is nil until the driver registers it.
type Impl struct {
	Init      func(api *API) error
	Artefact  func(d *Driver, cfg Config) (string, error)
	LinkToLib func(d *Driver, cfg Config, lib string) error
	Setup     func(d *Driver, cfg Config) error
	Generate  func(d *Driver, cfg Config) error
	Prebuild  func(d *Driver, cfg Config) error
	Postbuild func(d *Driver, cfg Config) error
	Clean     func(d *Driver, cfg Config) error
}

// DuplicateNodeError is fatal: node names must be unique per driver (spec §3).
type DuplicateNodeError struct {
	Driver, Name string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("driver %q: duplicate node name %q", e.Driver, e.Name)
}

// UnknownNodeReferenceError is fatal: a PATTERN target or deps entry must
// resolve to an existing node (spec §3).
type UnknownNodeReferenceError struct {
	Driver, From, Reference string
}

func (e *UnknownNodeReferenceError) Error() string {
	return fmt.Sprintf("driver %q: node %q references unknown node %q", e.Driver, e.From, e.Reference)
}

// NonPatternReferenceError is fatal: a PATTERN target reference must name a
// pattern node (spec §3).
type NonPatternReferenceError struct {
	Driver, From, Reference string
}

func (e *NonPatternReferenceError) Error() string {
	return fmt.Sprintf("driver %q: node %q's PATTERN target references %q, which is not a pattern node", e.Driver, e.From, e.Reference)
}

// Driver is a loadable plugin holding a dependency graph of nodes plus
// lifecycle callbacks (spec §3). It is a process-lifetime singleton per id.
type Driver struct {
	ID        string
	PackageID string

	// Version identifies the driver build that produced a project's cache
	// (SPEC_FULL §4 supplemented feature): bumping it invalidates every
	// cache directory the driver previously wrote to. Empty if the driver
	// never calls API.Version.
	Version string

	nodes  []*Node
	byName map[string]*Node
	Impl   Impl
	Error  bool
}

// API is the dispatch table exposed to driver plugins during Init (spec
// §4.3/§9: "all registration writes flow through that table into the driver
// instance passed implicitly as context").
type API struct {
	d *Driver
}

func newAPI(d *Driver) *API { return &API{d: d} }

// Pattern registers a pattern node.
func (a *API) Pattern(name, pattern string) error {
	return a.register(NewPattern(name, pattern))
}

// Rule registers a rule node.
func (a *API) Rule(name, source string, target Target, action ActionFunc) error {
	return a.register(NewRule(name, source, target, action))
}

// DependencyRule registers a dependency rule node.
func (a *API) DependencyRule(name, depsPattern string, action DependencyActionFunc) error {
	return a.register(NewDependencyRule(name, depsPattern, action))
}

// RegisterNode registers a fully constructed node, for callers that need to
// set Deps or Cond directly rather than going through Pattern/Rule/
// DependencyRule.
func (a *API) RegisterNode(n *Node) error {
	return a.register(n)
}

func (a *API) register(n *Node) error {
	if _, ok := a.d.byName[n.Name]; ok {
		return &DuplicateNodeError{Driver: a.d.ID, Name: n.Name}
	}
	a.d.byName[n.Name] = n
	a.d.nodes = append(a.d.nodes, n)
	return nil
}

// Version records the driver build identifier used to invalidate stale
// caches on a driver upgrade (SPEC_FULL §4). Optional; drivers that never
// call it keep the cache package from ever reporting them stale.
func (a *API) Version(v string) { a.d.Version = v }

func (a *API) Init(fn func(api *API) error)           { a.d.Impl.Init = fn }
func (a *API) Artefact(fn func(d *Driver, cfg Config) (string, error)) { a.d.Impl.Artefact = fn }
func (a *API) LinkToLib(fn func(d *Driver, cfg Config, lib string) error) { a.d.Impl.LinkToLib = fn }
func (a *API) Setup(fn func(d *Driver, cfg Config) error)     { a.d.Impl.Setup = fn }
func (a *API) Generate(fn func(d *Driver, cfg Config) error)  { a.d.Impl.Generate = fn }
func (a *API) Prebuild(fn func(d *Driver, cfg Config) error)  { a.d.Impl.Prebuild = fn }
func (a *API) Postbuild(fn func(d *Driver, cfg Config) error) { a.d.Impl.Postbuild = fn }
func (a *API) Clean(fn func(d *Driver, cfg Config) error)     { a.d.Impl.Clean = fn }

// Find returns the registered node named name, or nil. Lookup of the
// reserved SOURCES node is case-insensitive (spec §4.3).
func (d *Driver) Find(name string) *Node {
	if strings.EqualFold(name, "SOURCES") {
		for _, n := range d.nodes {
			if n.IsSources() {
				return n
			}
		}
	}
	return d.byName[name]
}

// Nodes returns every registered node, in registration order.
func (d *Driver) Nodes() []*Node {
	return d.nodes
}

// Validate checks the invariants of spec §3: node references resolve, deps
// form a DAG, and PATTERN target references name pattern nodes.
func (d *Driver) Validate() error {
	dag := graph.New()
	for _, n := range d.nodes {
		for _, dep := range n.Deps {
			if _, ok := d.byName[dep]; !ok {
				return &UnknownNodeReferenceError{Driver: d.ID, From: n.Name, Reference: dep}
			}
			dag.AddEdge(n.Name, dep)
		}
		if n.Kind == KindRule && n.Target.Kind == TargetPattern {
			for _, ref := range ReferencedPatternNames(n.Target.Pattern) {
				rn, ok := d.byName[ref]
				if !ok {
					return &UnknownNodeReferenceError{Driver: d.ID, From: n.Name, Reference: ref}
				}
				if rn.Kind != KindPattern {
					return &NonPatternReferenceError{Driver: d.ID, From: n.Name, Reference: ref}
				}
			}
		}
		if n.Kind == KindRule {
			if _, ok := d.byName[n.Source]; n.Source != "" && !ok {
				return &UnknownNodeReferenceError{Driver: d.ID, From: n.Name, Reference: n.Source}
			}
		}
	}
	return dag.Validate()
}

// sortedNames is a debugging helper that lists node names in sorted order,
// regardless of registration order.
func (d *Driver) sortedNames() []string {
	names := make([]string, 0, len(d.nodes))
	for _, n := range d.nodes {
		names = append(names, n.Name)
	}
	sort.Strings(names)
	return names
}
