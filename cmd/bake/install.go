package main

import (
	"context"
	"flag"

	"github.com/bakegraph/bake/env"
	"github.com/bakegraph/bake/internal/fsutil"
	"golang.org/x/xerrors"
)

const installHelp = `bake install [-flags] <project-dir>

Run the same build pipeline as build for <project-dir>. Its
install-postbuild step copies the artefact of a public project to
bin/<platform>-<config>/; a non-public project is built but not installed.
`

func cmdinstall(ctx context.Context, args []string) error {
	return runPipelineVerb(ctx, "install", installHelp, false, args)
}

const uninstallHelp = `bake uninstall [-flags] <project-id>

Remove a project's entry from the shared install tree.
`

func cmduninstall(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("uninstall", flag.ExitOnError)
	fset.Usage = usage(fset, uninstallHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: uninstall <project-id>")
	}
	dir := fset.Arg(0)
	return fsutil.RemoveTree(env.InstallDir() + "/" + dir)
}
