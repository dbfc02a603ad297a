package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/bakegraph/bake/driver"
	"github.com/bakegraph/bake/env"
	"github.com/bakegraph/bake/pipeline"
	"github.com/bakegraph/bake/project"
	"golang.org/x/xerrors"
)

const setupHelp = `bake setup [-flags] <project-dir>

Invoke every bound driver's setup callback for the project, provisioning
its toolchain dependencies ahead of first build. Idempotent; never runs
implicitly as part of build/rebuild.
`

func cmdsetup(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("setup", flag.ExitOnError)
	var (
		platform = fset.String("platform", runtime.GOARCH, "target platform")
		config   = fset.String("config", "debug", "build config (debug|release)")
	)
	fset.Usage = usage(fset, setupHelp)
	fset.Parse(args)

	dir := "."
	if fset.NArg() > 0 {
		dir = fset.Arg(0)
	}

	p, err := project.Parse(dir, nil)
	if err != nil {
		return xerrors.Errorf("parsing manifest: %w", err)
	}

	locator := newTreeLocator(env.InstallDir())
	pc := &pipeline.Context{
		Ctx:            ctx,
		Project:        p,
		Loader:         &driver.Loader{Locator: locator},
		Locator:        locator,
		Platform:       *platform,
		PlatformConfig: env.PlatformConfig(*platform, *config),
		InstallRoot:    env.InstallDir(),
		BinRoot:        env.BinDir(),
		CacheRoot:      env.CacheDir(),
	}
	if err := pipeline.Setup(pc); err != nil {
		return xerrors.Errorf("setup %s: %w", p.ID, err)
	}
	fmt.Fprintf(os.Stderr, "setup: %s ready\n", p.ID)
	return nil
}
