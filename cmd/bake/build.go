package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/bakegraph/bake/driver"
	"github.com/bakegraph/bake/env"
	"github.com/bakegraph/bake/pipeline"
	"github.com/bakegraph/bake/project"
	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"

	_ "github.com/bakegraph/bake/examples/cdriver" // registers the bundled example "c" driver
)

const buildHelp = `bake build [-flags] <project-dir>

Run the build pipeline for the project rooted at <project-dir> (default: ".").
`

func cmdbuild(ctx context.Context, args []string) error {
	return runPipelineVerb(ctx, "build", buildHelp, false, args)
}

const rebuildHelp = `bake rebuild [-flags] <project-dir>

Like build, but clears the project's build cache first (spec §4.6 step 4).
`

func cmdrebuild(ctx context.Context, args []string) error {
	return runPipelineVerb(ctx, "rebuild", rebuildHelp, true, args)
}

func runPipelineVerb(ctx context.Context, verb, helpText string, rebuild bool, args []string) error {
	fset := flag.NewFlagSet(verb, flag.ExitOnError)
	var (
		platform = fset.String("platform", runtime.GOARCH, "target platform")
		config   = fset.String("config", "debug", "build config (debug|release)")
	)
	fset.Usage = usage(fset, helpText)
	fset.Parse(args)

	dir := "."
	if fset.NArg() > 0 {
		dir = fset.Arg(0)
	}

	p, err := project.Parse(dir, func(msg string) { log.Printf("warning: %s", msg) })
	if err != nil {
		return xerrors.Errorf("parsing manifest: %w", err)
	}

	logger := log.New(os.Stderr, "", 0)
	tty := isatty.IsTerminal(os.Stderr.Fd())
	var ttyLineOpen bool
	progress := func(node string, percent int) {
		if tty {
			fmt.Fprintf(os.Stderr, "\r%s: %3d%% %-40s", verb, percent, node)
			ttyLineOpen = true
			return
		}
		logger.Printf("%s: %3d%% %s", verb, percent, node)
	}

	pc := env.PlatformConfig(*platform, *config)
	locator := newTreeLocator(env.InstallDir())
	ctxPipeline := &pipeline.Context{
		Ctx:              ctx,
		Project:          p,
		Loader:           &driver.Loader{Locator: locator},
		Locator:          locator,
		Platform:         *platform,
		PlatformConfig:   pc,
		Rebuild:          rebuild,
		ProjectsInFlight: 1,
		InstallRoot:      env.InstallDir(),
		BinRoot:          env.BinDir(),
		CacheRoot:        env.CacheDir(),
		Log:              logger,
		Progress:         progress,
	}

	err = pipeline.Run(ctxPipeline)
	if ttyLineOpen {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return xerrors.Errorf("%s %s: %w", verb, p.ID, err)
	}
	fmt.Fprintf(os.Stderr, "%s: %s built\n", verb, p.ID)
	return nil
}

const cleanHelp = `bake clean [-flags] <project-dir>

Invoke every bound driver's clean callback for the project (does not
remove the build cache; see rebuild for that).
`

func cmdclean(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("clean", flag.ExitOnError)
	fset.Usage = usage(fset, cleanHelp)
	fset.Parse(args)

	dir := "."
	if fset.NArg() > 0 {
		dir = fset.Arg(0)
	}
	p, err := project.Parse(dir, nil)
	if err != nil {
		return xerrors.Errorf("parsing manifest: %w", err)
	}
	loader := &driver.Loader{Locator: newTreeLocator(env.InstallDir())}
	for _, binding := range p.Drivers {
		d, err := loader.Load(binding.Driver)
		if err != nil {
			return xerrors.Errorf("loading driver %q: %w", binding.Driver, err)
		}
		if d.Impl.Clean == nil {
			continue
		}
		if err := d.Impl.Clean(d, nil); err != nil {
			return xerrors.Errorf("driver %q clean: %w", binding.Driver, err)
		}
	}
	return nil
}
