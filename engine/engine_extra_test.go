package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bakegraph/bake/driver"
	"github.com/bakegraph/bake/filelist"
	"github.com/bakegraph/bake/project"
)

func TestDependencyRuleExtendsInputs(t *testing.T) {
	id := t.Name()
	var extraAdded bool
	driver.Register(id, func(api *driver.API) error {
		if err := api.Pattern("SOURCES", "*.c"); err != nil {
			return err
		}
		depAction := func(d *driver.Driver, cfg driver.Config, p *project.Project, inputs *filelist.Filelist) error {
			extraAdded = true
			_, err := inputs.AddFile(filepath.Join(p.Path, "src/extra.h"))
			return err
		}
		if err := api.DependencyRule("HEADERDEPS", "", depAction); err != nil {
			return err
		}
		mapFn := func(d *driver.Driver, cfg driver.Config, p *project.Project, inputName string) (string, error) {
			return "build/" + inputName + ".o", nil
		}
		action := func(d *driver.Driver, cfg driver.Config, p *project.Project, src, dst string) error {
			return os.WriteFile(dst, []byte("x"), 0644)
		}
		rule := driver.NewRule("OBJECTS", "SOURCES", driver.Target{Kind: driver.TargetMap, Map: mapFn}, action)
		rule.Deps = []string{"HEADERDEPS"}
		return api.RegisterNode(rule)
	})

	l := &driver.Loader{}
	d, err := l.Load(id)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "src"), 0755)
	os.MkdirAll(filepath.Join(dir, "build"), 0755)
	os.WriteFile(filepath.Join(dir, "src/main.c"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "src/extra.h"), []byte("x"), 0644)

	p := &project.Project{Path: dir, Sources: []string{"src"}}
	e := &Evaluator{Driver: d, Project: p}
	out, err := e.Evaluate("OBJECTS")
	if err != nil {
		t.Fatal(err)
	}
	if !extraAdded {
		t.Fatal("expected dependency rule action to run")
	}
	// extra.h is not matched by *.c, but the dependency rule injected it as
	// an extra input, so it must be mapped too.
	found := false
	for _, f := range out.Iter() {
		if filepath.Base(f.FullPath) == "extra.h.o" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected extra.h to be mapped as an injected dependency input")
	}
}

func TestCycleDetected(t *testing.T) {
	id := t.Name()
	driver.Register(id, func(api *driver.API) error {
		rule := driver.NewRule("A", "B", driver.Target{Kind: driver.TargetMap, Map: func(d *driver.Driver, cfg driver.Config, p *project.Project, in string) (string, error) {
			return in, nil
		}}, func(d *driver.Driver, cfg driver.Config, p *project.Project, src, dst string) error { return nil })
		rule.Deps = []string{"B"}
		if err := api.RegisterNode(rule); err != nil {
			return err
		}
		rule2 := driver.NewRule("B", "A", driver.Target{Kind: driver.TargetMap, Map: func(d *driver.Driver, cfg driver.Config, p *project.Project, in string) (string, error) {
			return in, nil
		}}, func(d *driver.Driver, cfg driver.Config, p *project.Project, src, dst string) error { return nil })
		rule2.Deps = []string{"A"}
		return api.RegisterNode(rule2)
	})
	l := &driver.Loader{}
	if _, err := l.Load(id); err == nil {
		t.Fatal("expected a cycle error at driver load time")
	}
}
