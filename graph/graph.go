// Package graph provides the dependency-DAG validation shared by the driver
// node graph (rule/pattern/dependency-rule nodes) and the project dependency
// graph the crawler relies on. Cycle detection is delegated to gonum's
// topological sort, the same approach the teacher's batch scheduler uses for
// its package dependency graph.
package graph

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// CycleError reports a set of mutually dependent node names.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected among nodes: %s", strings.Join(e.Cycle, " -> "))
}

// namedNode adapts a string name to gonum's graph.Node interface.
type namedNode struct {
	id   int64
	name string
}

func (n namedNode) ID() int64 { return n.id }

// DAG is a named directed graph used to validate that a set of edges (e.g.
// node.deps, or project dependency declarations) forms a DAG.
type DAG struct {
	g       *simple.DirectedGraph
	byName  map[string]namedNode
	nextID  int64
}

// New returns an empty DAG.
func New() *DAG {
	return &DAG{
		g:      simple.NewDirectedGraph(),
		byName: make(map[string]namedNode),
	}
}

func (d *DAG) node(name string) namedNode {
	if n, ok := d.byName[name]; ok {
		return n
	}
	n := namedNode{id: d.nextID, name: name}
	d.nextID++
	d.byName[name] = n
	d.g.AddNode(n)
	return n
}

// AddEdge records that "from" depends on "to" (from must be evaluated after
// to, mirroring rule-node deps).
func (d *DAG) AddEdge(from, to string) {
	f, t := d.node(from), d.node(to)
	if f.ID() == t.ID() {
		return
	}
	d.g.SetEdge(d.g.NewEdge(f, t))
}

// Validate returns a *CycleError if the recorded edges do not form a DAG.
func (d *DAG) Validate() error {
	if _, err := topo.Sort(d.g); err != nil {
		if uo, ok := err.(topo.Unorderable); ok {
			for _, component := range uo {
				if len(component) < 2 {
					continue
				}
				names := make([]string, len(component))
				for i, n := range component {
					names[i] = n.(namedNode).name
				}
				return &CycleError{Cycle: names}
			}
		}
		return err
	}
	return nil
}

// Order returns the recorded nodes in a valid topological order (dependees
// before dependents), or a *CycleError if none exists.
func (d *DAG) Order() ([]string, error) {
	sorted, err := topo.Sort(d.g)
	if err != nil {
		if uo, ok := err.(topo.Unorderable); ok && len(uo) > 0 {
			names := make([]string, len(uo[0]))
			for i, n := range uo[0] {
				names[i] = n.(namedNode).name
			}
			return nil, &CycleError{Cycle: names}
		}
		return nil, err
	}
	// topo.Sort places an edge's source before its target, i.e. on a "from
	// depends on to" edge it returns dependents ahead of their dependencies;
	// reverse so callers see dependency order (deepest dependency first).
	names := make([]string, len(sorted))
	for i, n := range sorted {
		names[len(sorted)-1-i] = n.(namedNode).name
	}
	return names, nil
}

// Visited tracks a node's presence on the current descent path, for
// detecting re-entrancy during depth-first rule evaluation (spec §9: "the
// evaluator detects cycles by carrying a visited-set on the descent").
type Visited struct {
	onPath map[string]bool
}

// NewVisited returns an empty descent tracker.
func NewVisited() *Visited {
	return &Visited{onPath: make(map[string]bool)}
}

// Enter marks name as being on the current descent path. It returns a
// *CycleError if name is already on the path, and otherwise a leave func
// that must be called when the descent returns.
func (v *Visited) Enter(name string) (leave func(), err error) {
	if v.onPath[name] {
		return nil, &CycleError{Cycle: []string{name}}
	}
	v.onPath[name] = true
	return func() { delete(v.onPath, name) }, nil
}

var _ graph.Node = namedNode{}
