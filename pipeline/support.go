package pipeline

import (
	"context"
	"path/filepath"

	"github.com/bakegraph/bake/cache"
	"github.com/bakegraph/bake/install"
	"github.com/bakegraph/bake/internal/fsutil"
	"golang.org/x/xerrors"
)

// cleanCache implements pipeline step 4 (spec §4.6 item 4).
func cleanCache(ctx *Context) error {
	dir := cache.Dir(ctx.CacheRoot, ctx.Project.ID, ctx.PlatformConfig)
	return cache.Clean(dir, ctx.Project.ArtefactPath, ctx.Project.KeepBinary, ctx.ProjectsInFlight)
}

// shouldCleanCache is the clean-cache step's predicate: an explicit
// -rebuild always cleans, and so does a cache whose ledger names a
// different driver id/version than the one bound now (SPEC_FULL.md §4
// supplemented feature: a driver upgrade invalidates stale caches). Runs
// after load-drivers, so ctx.ArtefactDriver is already populated.
func shouldCleanCache(ctx *Context) bool {
	if ctx.Rebuild {
		return true
	}
	if ctx.ArtefactDriver == nil {
		return false
	}
	dir := cache.Dir(ctx.CacheRoot, ctx.Project.ID, ctx.PlatformConfig)
	return cache.Stale(dir, ctx.ArtefactDriver.ID, ctx.ArtefactDriver.Version)
}

// validateDependencies implements pipeline step 5 (spec §4.6 item 5, §8
// scenario 3 "Dependency outdates artefact"). It honours the Open
// Question decision recorded in DESIGN.md: use_build participates in the
// staleness check exactly like use/use_private.
func validateDependencies(ctx *Context) error {
	p := ctx.Project
	deps := append(append(append([]string{}, p.Use...), p.UsePrivate...), p.UseBuild...)
	if len(deps) == 0 || p.ArtefactPath == "" {
		return nil
	}

	artefactTime, err := fsutil.LastModified(p.ArtefactPath)
	if err != nil {
		return xerrors.Errorf("stat artefact %q: %w", p.ArtefactPath, err)
	}

	for _, id := range deps {
		libPath, err := ctx.Locator.Locate(id, "LIB")
		if err != nil {
			return &MissingDependencyError{ID: id}
		}
		depTime, err := fsutil.LastModified(libPath)
		if err != nil {
			return xerrors.Errorf("stat dependency %q: %w", id, err)
		}
		if depTime > artefactTime {
			p.State.ArtefactOutdated = true
		}
	}

	if p.State.ArtefactOutdated {
		if err := fsutil.Remove(p.ArtefactPath); err != nil {
			return xerrors.Errorf("removing stale artefact: %w", err)
		}
	}
	return nil
}

// installStaticFiles implements pipeline step 8 (spec §4.6 item 8): copy
// declared static files (a project's includes tree) into the install tree
// ahead of prebuild, so headers are available to dependents even if the
// build itself fails later.
func installStaticFiles(ctx *Context) error {
	dst := filepath.Join(ctx.InstallRoot, ctx.Project.ID, "include")
	for _, inc := range ctx.Project.Includes {
		src := filepath.Join(ctx.Project.Path, inc)
		if !fsutil.Exists(src) {
			continue
		}
		if err := install.CopyTree(context.Background(), src, dst); err != nil {
			return xerrors.Errorf("installing static files from %q: %w", inc, err)
		}
	}
	return nil
}
