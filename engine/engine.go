// Package engine implements the rule evaluation engine of spec §4.2: a
// depth-first post-order walk of a driver's node graph that expands
// file-pattern inputs, maps inputs to outputs, performs up-to-date checks
// against filesystem timestamps, and invokes driver actions when targets
// are stale.
package engine

import (
	"path/filepath"
	"strings"

	"github.com/bakegraph/bake/driver"
	"github.com/bakegraph/bake/filelist"
	"github.com/bakegraph/bake/graph"
	"github.com/bakegraph/bake/internal/fsutil"
	"github.com/bakegraph/bake/project"
	"golang.org/x/xerrors"
)

// NodeNotFoundError is fatal: a rule's source, or a node reference, named a
// node the driver never registered.
type NodeNotFoundError struct{ Name string }

func (e *NodeNotFoundError) Error() string {
	return "node not found: " + e.Name
}

// ActionError wraps a driver action failure (spec §7 "action reports
// failure").
type ActionError struct {
	Node string
	Err  error
}

func (e *ActionError) Error() string {
	return xerrors.Errorf("action for node %q failed: %w", e.Node, e.Err).Error()
}
func (e *ActionError) Unwrap() error { return e.Err }

// ProgressFunc reports MAP-rule progress as a percentage of inputs
// processed (spec §4.2); a PATTERN rule reports 100 once it has fired or
// been found up to date.
type ProgressFunc func(node string, percent int)

// Evaluator walks a single driver's node graph for one project.
type Evaluator struct {
	Driver   *driver.Driver
	Config   driver.Config
	Project  *project.Project
	Progress ProgressFunc
}

// Evaluate runs the rule graph rooted at nodeName (typically the node
// producing the project's artefact) and returns its resulting filelist.
func (e *Evaluator) Evaluate(nodeName string) (*filelist.Filelist, error) {
	return e.eval(nodeName, nil, graph.NewVisited())
}

func (e *Evaluator) eval(name string, inherited *filelist.Filelist, v *graph.Visited) (*filelist.Filelist, error) {
	leave, err := v.Enter(name)
	if err != nil {
		return nil, err
	}
	defer leave()

	n := e.Driver.Find(name)
	if n == nil {
		return nil, &NodeNotFoundError{Name: name}
	}

	if n.Cond != nil {
		ok, err := n.Cond(e.Driver, e.Config, e.Project)
		if err != nil {
			return nil, err
		}
		if !ok {
			return filelist.New("", "")
		}
	}

	switch n.Kind {
	case driver.KindPattern:
		return e.evalPattern(n, v)
	case driver.KindRule:
		return e.evalRule(n, inherited, v)
	case driver.KindDependencyRule:
		return e.evalDependencyRule(n, inherited)
	default:
		return nil, xerrors.Errorf("node %q: unknown kind %v", name, n.Kind)
	}
}

// evalPattern implements spec §4.2 step 2.
func (e *Evaluator) evalPattern(n *driver.Node, v *graph.Visited) (*filelist.Filelist, error) {
	var targets *filelist.Filelist
	var err error

	if n.IsSources() {
		targets, err = filelist.New("", "")
		if err != nil {
			return nil, err
		}
		for _, src := range e.Project.Sources {
			base := filepath.Join(e.Project.Path, src)
			if err := targets.AddPattern(base, n.Pattern); err != nil {
				return nil, err
			}
		}
	} else {
		targets, err = filelist.New(e.Project.Path, n.Pattern)
		if err != nil {
			return nil, err
		}
	}

	for _, depName := range n.Deps {
		depFL, err := e.eval(depName, targets, v)
		if err != nil {
			return nil, err
		}
		targets.Merge(depFL)
	}

	return targets, nil
}

// evalDependencyRule implements spec §3's dynamic extra-input injection: it
// mutates (or, if there is no inherited list yet, seeds) the inputs list
// flowing through its parent rule node.
func (e *Evaluator) evalDependencyRule(n *driver.Node, inherited *filelist.Filelist) (*filelist.Filelist, error) {
	fl := inherited
	if fl == nil {
		newFL, err := filelist.New("", "")
		if err != nil {
			return nil, err
		}
		fl = newFL
	}
	if n.DepAction != nil {
		if err := n.DepAction(e.Driver, e.Config, e.Project, fl); err != nil {
			return nil, &ActionError{Node: n.Name, Err: err}
		}
	}
	return fl, nil
}

// evalRule implements spec §4.2 step 3.
func (e *Evaluator) evalRule(n *driver.Node, inherited *filelist.Filelist, v *graph.Visited) (*filelist.Filelist, error) {
	var inputs *filelist.Filelist
	var err error
	if n.Source != "" {
		inputs, err = e.eval(n.Source, inherited, v)
		if err != nil {
			return nil, err
		}
	} else {
		inputs, err = filelist.New(e.Project.Path, "")
		if err != nil {
			return nil, err
		}
	}

	for _, depName := range n.Deps {
		depNode := e.Driver.Find(depName)
		if depNode == nil {
			return nil, &NodeNotFoundError{Name: depName}
		}
		depFL, err := e.eval(depName, inputs, v)
		if err != nil {
			return nil, err
		}
		if depNode.Kind == driver.KindDependencyRule {
			inputs = depFL // dependency rules mutate the inputs list in place
		} else {
			inputs.Merge(depFL)
		}
	}

	switch n.Target.Kind {
	case driver.TargetMap:
		return e.runMap(n, inputs)
	case driver.TargetPattern:
		return e.runPattern(n, inputs, inherited, v)
	default:
		return nil, xerrors.Errorf("rule %q: unrecognised target kind", n.Name)
	}
}

// runMap implements the MAP target semantics of spec §4.2.
func (e *Evaluator) runMap(n *driver.Node, inputs *filelist.Filelist) (*filelist.Filelist, error) {
	out, err := filelist.New(e.Project.Path, "")
	if err != nil {
		return nil, err
	}

	files := inputs.Iter()
	total := len(files)
	for i, f := range files {
		outName, err := n.Target.Map(e.Driver, e.Config, e.Project, f.Name)
		if err != nil {
			return nil, err
		}
		outFile, err := out.AddFile(outName)
		if err != nil {
			return nil, err
		}

		if f.Timestamp > outFile.Timestamp {
			if err := fsutil.MkdirAll(filepath.Dir(outFile.FullPath)); err != nil {
				return nil, err
			}
			if err := n.Action(e.Driver, e.Config, e.Project, f.FullPath, outFile.FullPath); err != nil {
				return nil, &ActionError{Node: n.Name, Err: err}
			}
			if e.Project.State.Error {
				return nil, &ActionError{Node: n.Name, Err: xerrors.Errorf("project error flag set during action")}
			}
			if _, err := out.Refresh(outName); err != nil {
				return nil, err
			}
		}

		if e.Progress != nil {
			e.Progress(n.Name, (i+1)*100/max(total, 1))
		}
	}
	return out, nil
}

// runPattern implements the PATTERN target semantics of spec §4.2.
func (e *Evaluator) runPattern(n *driver.Node, inputs, inherited *filelist.Filelist, v *graph.Visited) (*filelist.Filelist, error) {
	refs := driver.ReferencedPatternNames(n.Target.Pattern)

	var targets *filelist.Filelist
	var shouldBuild bool

	if len(refs) == 1 && inherited != nil {
		targets = inherited
	} else {
		var err error
		targets, err = filelist.New(e.Project.Path, "")
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			refFL, err := e.eval(ref, nil, v)
			if err != nil {
				return nil, err
			}
			if refFL.Count() == 0 {
				shouldBuild = true
			}
			targets.Merge(refFL)
		}
	}

	fire := shouldBuild || targets.Count() == 0
	if !fire {
		maxInput := maxTimestamp(inputs)
		minOutput := minTimestamp(targets)
		if hasMissing(targets) || maxInput > minOutput {
			fire = true
		}
	}

	if fire {
		names := make([]string, 0, inputs.Count())
		for _, f := range inputs.Iter() {
			names = append(names, f.FullPath)
		}
		concatenated := strings.Join(names, " ")

		var target string
		if targets.Count() == 1 {
			target = targets.Iter()[0].FullPath
		}

		if err := n.Action(e.Driver, e.Config, e.Project, concatenated, target); err != nil {
			return nil, &ActionError{Node: n.Name, Err: err}
		}
		if e.Project.State.Error {
			return nil, &ActionError{Node: n.Name, Err: xerrors.Errorf("project error flag set during action")}
		}
		if !(len(refs) == 1 && inherited != nil) {
			// Re-expand the referenced patterns: outputs the action has just
			// created were not on disk when targets was first composed.
			for _, ref := range refs {
				refFL, err := e.eval(ref, nil, v)
				if err != nil {
					return nil, err
				}
				targets.Merge(refFL)
			}
		}
		for _, f := range targets.Iter() {
			if _, err := targets.Refresh(f.FullPath); err != nil {
				return nil, err
			}
		}
	}

	if e.Progress != nil {
		e.Progress(n.Name, 100)
	}

	return targets, nil
}

func maxTimestamp(fl *filelist.Filelist) uint64 {
	var max uint64
	for _, f := range fl.Iter() {
		if f.Timestamp > max {
			max = f.Timestamp
		}
	}
	return max
}

func minTimestamp(fl *filelist.Filelist) uint64 {
	files := fl.Iter()
	if len(files) == 0 {
		return 0
	}
	min := files[0].Timestamp
	for _, f := range files[1:] {
		if f.Timestamp < min {
			min = f.Timestamp
		}
	}
	return min
}

func hasMissing(fl *filelist.Filelist) bool {
	for _, f := range fl.Iter() {
		if f.Timestamp == 0 {
			return true
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
