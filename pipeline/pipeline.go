// Package pipeline implements the twelve-step per-project build pipeline
// of spec §4.6, data-driven as an ordered list of (name, predicate, run)
// steps per spec §9's design note, grounded on bake's src/build.c step
// sequencing and the teacher's internal/batch/batch.go per-package build
// loop.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/bakegraph/bake/attribute"
	"github.com/bakegraph/bake/cache"
	"github.com/bakegraph/bake/driver"
	"github.com/bakegraph/bake/engine"
	"github.com/bakegraph/bake/install"
	"github.com/bakegraph/bake/metadata"
	"github.com/bakegraph/bake/project"
	"golang.org/x/xerrors"
)

// CanceledError reports that the pipeline stopped because its Context was
// canceled between two steps (spec §5: "Interrupt signalling from the
// host aborts after the currently running subprocess returns" — checked
// only at step boundaries, never inside a running step).
type CanceledError struct{ Step string }

func (e *CanceledError) Error() string { return "canceled before step " + e.Step }

// MissingDependencyError is fatal per spec §7/§8 scenario 4.
type MissingDependencyError struct{ ID string }

func (e *MissingDependencyError) Error() string {
	return "missing dependency '" + e.ID + "'"
}

// StepError wraps a step failure with its named scope, matching the
// logged-diagnostic-chain requirement of spec §7 ("errors are logged with
// the active step scope ... accompanied by the underlying diagnostic
// chain").
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return xerrors.Errorf("%s: %w", e.Step, e.Err).Error()
}
func (e *StepError) Unwrap() error { return e.Err }

// Context threads everything a step needs through the pipeline for one
// project. It is rebuilt fresh for each project the crawler surfaces.
type Context struct {
	Ctx     context.Context
	Project *project.Project
	Loader  *driver.Loader
	Locator driver.Locator

	Config          driver.Config
	Platform        string
	PlatformConfig  string // e.g. "amd64-debug"
	Rebuild         bool
	ProjectsInFlight int

	InstallRoot string // shared install tree root
	BinRoot     string // application binary install root
	CacheRoot   string // build-cache root

	Log *log.Logger

	// Progress, if set, is forwarded live percentages during stepBuild
	// (spec §4.2 "progress is reported as a percentage of inputs
	// processed"); the CLI front end assigns it a TTY- or log-line-based
	// renderer (SPEC_FULL.md §2.4).
	Progress engine.ProgressFunc

	// populated by load-drivers
	Drivers        []*driver.Driver
	ArtefactDriver *driver.Driver
	artefactNode   string

	// populated by build: the freshly produced artefact, still sitting in
	// the project's own build tree, waiting to be installed in step 12.
	// Project.ArtefactPath, by contrast, is the stable installed location
	// dependents and validate-dependencies reason about.
	builtArtefactPath string
}

func (c *Context) logf(step, format string, args ...interface{}) {
	if c.Log == nil {
		return
	}
	c.Log.Printf("%s: "+format, append([]interface{}{step}, args...)...)
}

// Step is one named, predicated pipeline stage.
type Step struct {
	Name      string
	Predicate func(*Context) bool
	Run       func(*Context) error
}

func always(*Context) bool { return true }

func isPublic(c *Context) bool { return c.Project.Public }

func isPublicNonTool(c *Context) bool {
	return c.Project.Public && c.Project.Type != project.TypeTool
}

// Steps is the ordered pipeline of spec §4.6. Step i is attempted only if
// step i-1 succeeded (see Run).
var Steps = []Step{
	{"install-metadata", isPublic, stepInstallMetadata},
	{"load-drivers", always, stepLoadDrivers},
	{"load-dependees", always, stepLoadDependees},
	{"clean-cache", shouldCleanCache, stepCleanCache},
	{"validate-dependencies", always, stepValidateDependencies},
	{"generate", always, stepGenerate},
	{"clear", isPublicNonTool, stepClear},
	{"install-prebuild", isPublicNonTool, stepInstallPrebuild},
	{"prebuild", always, stepPrebuild},
	{"build", func(c *Context) bool { return c.artefactNode != "" }, stepBuild},
	{"postbuild", always, stepPostbuild},
	{"install-postbuild", func(c *Context) bool { return c.Project.Public && c.builtArtefactPath != "" }, stepInstallPostbuild},
}

// Run executes every step in order against ctx, stopping at the first
// failing or skipped-due-to-failure step (spec §5: "Any step failure
// aborts the pipeline for this project").
func Run(ctx *Context) error {
	if ctx.Project.ArtefactPath == "" && ctx.Project.IDBase != "" {
		ctx.Project.ArtefactPath = ctx.BinRoot + "/" + ctx.PlatformConfig + "/" + ctx.Project.IDBase
	}
	for _, s := range Steps {
		if ctx.Ctx != nil && ctx.Ctx.Err() != nil {
			return &CanceledError{Step: s.Name}
		}
		if !s.Predicate(ctx) {
			ctx.logf(s.Name, "skipped")
			continue
		}
		ctx.logf(s.Name, "starting")
		if err := s.Run(ctx); err != nil {
			return &StepError{Step: s.Name, Err: err}
		}
	}
	return nil
}

// Setup loads ctx.Project's drivers (without running the rest of the
// pipeline) and invokes each bound driver's Setup callback, for the
// `bake setup` verb: provisioning a project's toolchain dependencies ahead
// of first build is idempotent and explicitly requested by the caller, so
// it never runs implicitly as part of Run.
func Setup(ctx *Context) error {
	if err := stepLoadDrivers(ctx); err != nil {
		return err
	}
	for _, d := range ctx.Drivers {
		if d.Impl.Setup == nil {
			continue
		}
		if err := d.Impl.Setup(d, ctx.Config); err != nil {
			return xerrors.Errorf("driver %q setup: %w", d.ID, err)
		}
	}
	return nil
}

func stepInstallMetadata(ctx *Context) error {
	dir := ctx.InstallRoot + "/" + ctx.Project.ID
	return metadata.Export(ctx.Project, dir)
}

func stepLoadDrivers(ctx *Context) error {
	expander := attribute.NewExpander(attribute.Scope{
		Funcs: attribute.BuiltinScope(ctx.Project.Language, ctx.Project.ArtefactPath, ctx.Config),
	})
	for i := range ctx.Project.Drivers {
		binding := &ctx.Project.Drivers[i]
		d, err := ctx.Loader.Load(binding.Driver)
		if err != nil {
			return xerrors.Errorf("loading driver %q: %w", binding.Driver, err)
		}
		if err := project.EvaluateAttributes(ctx.Project, binding, expander); err != nil {
			return xerrors.Errorf("evaluating attributes for driver %q: %w", binding.Driver, err)
		}
		ctx.Drivers = append(ctx.Drivers, d)
		if d.Impl.Artefact != nil && ctx.ArtefactDriver == nil {
			ctx.ArtefactDriver = d
		}
	}
	if ctx.ArtefactDriver != nil {
		name, err := ctx.ArtefactDriver.Impl.Artefact(ctx.ArtefactDriver, ctx.Config)
		if err != nil {
			return xerrors.Errorf("resolving artefact node: %w", err)
		}
		ctx.artefactNode = name
	}
	return nil
}

func stepLoadDependees(ctx *Context) error {
	for _, id := range append(append([]string{}, ctx.Project.Use...), ctx.Project.UsePrivate...) {
		path, err := ctx.Locator.Locate(id, "PACKAGE")
		if err != nil {
			return &MissingDependencyError{ID: id}
		}
		dependee, err := project.ParseDependee(path)
		if err != nil {
			return xerrors.Errorf("parsing dependee %q: %w", id, err)
		}
		if dependee == nil {
			continue
		}
		if err := project.MergeDependee(ctx.Project, dependee); err != nil {
			return xerrors.Errorf("merging dependee %q: %w", id, err)
		}
	}
	return nil
}

func stepCleanCache(ctx *Context) error {
	return cleanCache(ctx)
}

func stepValidateDependencies(ctx *Context) error {
	return validateDependencies(ctx)
}

func stepGenerate(ctx *Context) error {
	for _, d := range ctx.Drivers {
		if d.Impl.Generate == nil {
			continue
		}
		if err := d.Impl.Generate(d, ctx.Config); err != nil {
			return xerrors.Errorf("driver %q generate: %w", d.ID, err)
		}
	}
	return nil
}

func stepClear(ctx *Context) error {
	dir := ctx.InstallRoot + "/" + ctx.Project.ID
	return install.Clear(dir, metadata.FileName)
}

func stepInstallPrebuild(ctx *Context) error {
	return installStaticFiles(ctx)
}

func stepPrebuild(ctx *Context) error {
	for _, d := range ctx.Drivers {
		if d.Impl.Prebuild == nil {
			continue
		}
		if err := d.Impl.Prebuild(d, ctx.Config); err != nil {
			return xerrors.Errorf("driver %q prebuild: %w", d.ID, err)
		}
	}
	return nil
}

func stepBuild(ctx *Context) error {
	var buildLog bytes.Buffer
	e := &engine.Evaluator{
		Driver:  ctx.ArtefactDriver,
		Config:  ctx.Config,
		Project: ctx.Project,
		Progress: func(node string, percent int) {
			fmt.Fprintf(&buildLog, "%3d%% %s\n", percent, node)
			if ctx.Progress != nil {
				ctx.Progress(node, percent)
			}
		},
	}
	out, err := e.Evaluate(ctx.artefactNode)
	if err != nil {
		return err
	}
	if out.Count() > 0 {
		ctx.builtArtefactPath = out.Iter()[0].FullPath
		ctx.Project.State.FreshlyBaked = true
		ctx.Project.State.Changed = true
		ctx.Project.State.Built = true

		dir := cache.Dir(ctx.CacheRoot, ctx.Project.ID, ctx.PlatformConfig)
		if ctx.ArtefactDriver != nil {
			if err := cache.WriteLedger(dir, cache.Ledger{
				DriverID:      ctx.ArtefactDriver.ID,
				DriverVersion: ctx.ArtefactDriver.Version,
			}); err != nil {
				return xerrors.Errorf("writing cache ledger: %w", err)
			}
		}
		if err := cache.WriteLog(filepath.Join(dir, "build.log.gz"), buildLog.Bytes()); err != nil {
			return xerrors.Errorf("writing build log: %w", err)
		}
	}
	return nil
}

func stepPostbuild(ctx *Context) error {
	for _, d := range ctx.Drivers {
		if d.Impl.Postbuild == nil {
			continue
		}
		if err := d.Impl.Postbuild(d, ctx.Config); err != nil {
			return xerrors.Errorf("driver %q postbuild: %w", d.ID, err)
		}
	}
	return nil
}

func stepInstallPostbuild(ctx *Context) error {
	return install.InstallFile(ctx.builtArtefactPath, ctx.Project.ArtefactPath)
}
