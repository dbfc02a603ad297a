// Package fsutil is the thin adapter behind the out-of-scope Filesystem
// utility interface of spec §6. It implements only the three local recovery
// policies spec §7 requires (idempotent mkdir, idempotent rm, create-then-
// retry cp); every other failure propagates unchanged.
package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"
)

var nowFunc = time.Now

// MkdirAll creates path and any missing parents. mkdir of an already-
// existing directory is success (spec §7 recovery policy i).
func MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return xerrors.Errorf("mkdir -p %q: %w", path, err)
	}
	return nil
}

// Remove removes path. rm of a non-existent file is success (spec §7
// recovery policy ii).
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("rm %q: %w", path, err)
	}
	return nil
}

// RemoveTree removes path and everything beneath it. Like Remove, a missing
// path is success.
func RemoveTree(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return xerrors.Errorf("rm -rf %q: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst, preserving src's mode. If dst's parent
// directory is missing, it retries once after creating it (spec §7
// recovery policy iii).
func CopyFile(src, dst string) error {
	err := copyFileOnce(src, dst)
	if err != nil && os.IsNotExist(err) {
		if mkErr := MkdirAll(filepath.Dir(dst)); mkErr != nil {
			return mkErr
		}
		err = copyFileOnce(src, dst)
	}
	if err != nil {
		return xerrors.Errorf("cp %q %q: %w", src, dst, err)
	}
	return nil
}

func copyFileOnce(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// LastModified returns 0 (not an error) if path does not exist, matching
// filelist's file-descriptor convention.
func LastModified(path string) (uint64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(fi.ModTime().Unix()), nil
}

// Exists reports whether path exists (file or directory).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Touch sets path's modification time to now, creating it if necessary.
func Touch(path string) error {
	now := nowFunc()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		f.Close()
	}
	return os.Chtimes(path, now, now)
}
