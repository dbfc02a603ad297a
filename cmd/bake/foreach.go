package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bakegraph/bake/driver"
	"github.com/bakegraph/bake/env"
	"github.com/bakegraph/bake/internal/fsutil"
	"github.com/bakegraph/bake/pipeline"
	"github.com/bakegraph/bake/project"
	"golang.org/x/xerrors"
)

const foreachHelp = `bake foreach [-flags] <root-dir>

Build every project found (by project.json presence) under root-dir, in
directory-name order. A stand-in for the external crawler collaborator
(spec §2): a real deployment substitutes a dependency-ordered crawler
here, but this is enough to exercise the pipeline over a whole tree.
`

func cmdforeach(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("foreach", flag.ExitOnError)
	fset.Usage = usage(fset, foreachHelp)
	fset.Parse(args)

	if err := bumpRlimitNOFILE(); err != nil {
		fmt.Fprintf(os.Stderr, "foreach: warning: bumping RLIMIT_NOFILE failed: %v\n", err)
	}

	root := "."
	if fset.NArg() > 0 {
		root = fset.Arg(0)
	}

	dirs, err := findProjects(root)
	if err != nil {
		return err
	}

	locator := newTreeLocator(env.InstallDir())
	for _, dir := range dirs {
		p, err := project.Parse(dir, nil)
		if err != nil {
			return xerrors.Errorf("parsing %q: %w", dir, err)
		}
		pc := &pipeline.Context{
			Ctx:              ctx,
			Project:          p,
			Loader:           &driver.Loader{Locator: locator},
			Locator:          locator,
			Platform:         "amd64",
			PlatformConfig:   env.PlatformConfig("amd64", "debug"),
			ProjectsInFlight: len(dirs),
			InstallRoot:      env.InstallDir(),
			BinRoot:          env.BinDir(),
			CacheRoot:        env.CacheDir(),
		}
		if err := pipeline.Run(pc); err != nil {
			return xerrors.Errorf("%s: %w", p.ID, err)
		}
		fmt.Fprintf(os.Stderr, "foreach: %s built\n", p.ID)
	}
	return nil
}

func findProjects(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && fsutil.Exists(filepath.Join(path, "project.json")) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("walking %q: %w", root, err)
	}
	return dirs, nil
}
