package main

import (
	"context"
	"flag"

	"github.com/bakegraph/bake/env"
	"github.com/bakegraph/bake/internal/installfs"
	"github.com/bakegraph/bake/internal/lifecycle"
	"github.com/jacobsa/fuse"
	"golang.org/x/xerrors"
)

const mountHelp = `bake mount [-flags] <mountpoint>

Mount a read-only FUSE view of the shared install tree at <mountpoint>.
Blocks until interrupted or the mount is unmounted (fusermount -u).
`

func cmdmount(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("mount", flag.ExitOnError)
	root := fset.String("root", env.InstallDir(), "directory to expose read-only")
	fset.Usage = usage(fset, mountHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: mount <mountpoint>")
	}

	mountpoint := fset.Arg(0)
	join, err := installfs.Mount(ctx, *root, mountpoint)
	if err != nil {
		return xerrors.Errorf("mounting %q: %w", mountpoint, err)
	}
	// Belt-and-braces: the mount also unmounts itself when ctx is canceled
	// (installfs.Mount); this hook attempts the unmount again from
	// RunAtExit, which funcmain calls only when the verb returns no error.
	lifecycle.RegisterAtExit(func() error {
		return fuse.Unmount(mountpoint)
	})
	return join(ctx)
}
