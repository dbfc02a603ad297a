// Package driver implements the driver plugin interface of spec §2.3/§4.3:
// the node registration API exposed to drivers, the process-lifetime driver
// cache, and the loader that resolves a driver id to a running instance.
package driver

import (
	"strings"

	"github.com/bakegraph/bake/filelist"
	"github.com/bakegraph/bake/project"
)

// Cond guards a node: it returns false to suppress the node's contribution
// entirely (spec §4.2 step 1).
type Cond func(d *Driver, cfg Config, p *project.Project) (bool, error)

// ActionFunc is invoked by a MAP rule node for each stale input, or by a
// PATTERN rule node once for the whole target set.
//
// For a PATTERN rule, src is the space-separated list of inputs and dst is
// "" unless the rule resolved exactly one output (spec §4.2: "A single
// target name is passed only when the output list has exactly one entry").
type ActionFunc func(d *Driver, cfg Config, p *project.Project, src, dst string) error

// DependencyActionFunc is invoked during evaluation of a dependency rule's
// parent to dynamically extend its inputs (spec §3 "dependency rule").
type DependencyActionFunc func(d *Driver, cfg Config, p *project.Project, inputs *filelist.Filelist) error

// MapFunc computes a rule's MAP target output name for a given input name.
type MapFunc func(d *Driver, cfg Config, p *project.Project, inputName string) (string, error)

// Kind discriminates the Node sum type (spec §9: "model these as a single
// sum type Node = Pattern|Rule|DependencyRule").
type Kind int

const (
	KindPattern Kind = iota
	KindRule
	KindDependencyRule
)

// TargetKind discriminates a Rule node's target variant (spec §3).
type TargetKind int

const (
	TargetMap TargetKind = iota
	TargetPattern
)

// Target is the tagged {MAP|PATTERN} variant of a rule node's target.
type Target struct {
	Kind TargetKind

	// MAP
	Map MapFunc

	// PATTERN: comma-separated list of node references prefixed with "$",
	// e.g. "$OBJECTS,$HEADERS".
	Pattern string
}

// Node is the common header shared by all three rule-graph node variants
// (spec §3), with variant-specific fields populated according to Kind.
type Node struct {
	Kind Kind
	Name string
	Deps []string
	Cond Cond

	// Pattern node
	Pattern string

	// Rule node
	Source string
	Target Target
	Action ActionFunc

	// Dependency rule
	DepsPattern string
	DepAction   DependencyActionFunc
}

// NewPattern constructs a pattern node. pattern may be empty, meaning the
// node resolves to an empty filelist (spec §3).
func NewPattern(name string, pattern string) *Node {
	return &Node{Kind: KindPattern, Name: name, Pattern: pattern}
}

// NewRule constructs a rule node transforming the filelist produced by the
// node named source via target, invoking action when a target is stale.
func NewRule(name, source string, target Target, action ActionFunc) *Node {
	return &Node{Kind: KindRule, Name: name, Source: source, Target: target, Action: action}
}

// NewDependencyRule constructs a dependency rule node: during evaluation of
// its parent, action dynamically extends the parent's inputs (e.g. header
// dependencies emitted by a compiler).
func NewDependencyRule(name, depsPattern string, action DependencyActionFunc) *Node {
	return &Node{Kind: KindDependencyRule, Name: name, DepsPattern: depsPattern, DepAction: action}
}

// IsSources reports whether n is the reserved SOURCES pattern node. Lookups
// of SOURCES are case-insensitive (spec §4.3).
func (n *Node) IsSources() bool {
	return n.Kind == KindPattern && strings.EqualFold(n.Name, "SOURCES")
}

// ReferencedPatternNames parses a PATTERN target string ("$a,$b") into its
// referenced node names.
func ReferencedPatternNames(pattern string) []string {
	parts := strings.Split(pattern, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(p, "$")
		if p == "" {
			continue
		}
		names = append(names, p)
	}
	return names
}
