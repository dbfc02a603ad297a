// Package install implements copy-tree and atomic single-file installation
// into the shared install tree (spec §5: "the install tree is a shared
// mutable resource"), generalised from bake's util/src/fs.c tree-copy and
// the teacher's renameio-based atomic install pattern
// (internal/build/build.go).
package install

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/bakegraph/bake/internal/fsutil"
	"github.com/google/renameio"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// skipNames are VCS metadata directories CopyTree never installs, per the
// original bake tree-copy behaviour (SPEC_FULL.md §4).
var skipNames = map[string]bool{
	".git": true,
	".hg":  true,
}

// CopyTree recursively copies src into dst, preserving permissions and
// symlinks. Independent top-level entries are copied concurrently with
// errgroup, since this is ordinary file-copy fan-out, not rule-graph
// parallelism (spec §1 Non-goals excludes only the latter).
func CopyTree(ctx context.Context, src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("reading %q: %w", src, err)
	}

	if err := fsutil.MkdirAll(dst); err != nil {
		return err
	}

	eg, _ := errgroup.WithContext(ctx)
	for _, entry := range entries {
		entry := entry
		if skipNames[entry.Name()] {
			continue
		}
		eg.Go(func() error {
			return copyEntry(ctx, filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name()))
		})
	}
	return eg.Wait()
}

func copyEntry(ctx context.Context, src, dst string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return xerrors.Errorf("lstat %q: %w", src, err)
	}

	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return xerrors.Errorf("readlink %q: %w", src, err)
		}
		_ = os.Remove(dst)
		if err := os.Symlink(target, dst); err != nil {
			return xerrors.Errorf("symlink %q -> %q: %w", dst, target, err)
		}
		return nil
	case fi.IsDir():
		return CopyTree(ctx, src, dst)
	default:
		return InstallFile(src, dst)
	}
}

// InstallFile atomically installs src at dst: the file is written to a
// temporary sibling and renamed into place, so a concurrent reader of dst
// never observes a partially-written file (spec §5's shared install tree).
func InstallFile(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return xerrors.Errorf("stat %q: %w", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return xerrors.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	writeOnce := func() error {
		t, err := renameio.TempFile("", dst)
		if err != nil {
			return err
		}
		defer t.Cleanup()
		if _, err := io.Copy(t, in); err != nil {
			return err
		}
		if err := t.Chmod(fi.Mode()); err != nil {
			return err
		}
		return t.CloseAtomicallyReplace()
	}

	if err := writeOnce(); err != nil {
		if os.IsNotExist(err) {
			if mkErr := fsutil.MkdirAll(filepath.Dir(dst)); mkErr != nil {
				return mkErr
			}
			if _, err := in.Seek(0, io.SeekStart); err != nil {
				return err
			}
			return writeOnce()
		}
		return xerrors.Errorf("installing %q: %w", dst, err)
	}
	return nil
}

// Clear removes every file under installDir except files named metadataName
// (spec §4.6 step 7: "remove previously installed non-metadata files").
func Clear(installDir, metadataName string) error {
	entries, err := os.ReadDir(installDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.Name() == metadataName {
			continue
		}
		if err := fsutil.RemoveTree(filepath.Join(installDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
