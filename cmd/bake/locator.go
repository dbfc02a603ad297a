package main

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// treeLocator is the default, filesystem-only implementation of the
// out-of-scope package locator collaborator of spec §6: it resolves a
// package id directly to its subdirectory of the shared install tree.
// Results are memoised per (packageID, kind), as spec §6 requires.
type treeLocator struct {
	root  string
	memo  map[[2]string]string
}

func newTreeLocator(root string) *treeLocator {
	return &treeLocator{root: root, memo: make(map[[2]string]string)}
}

func (l *treeLocator) Locate(packageID, kind string) (string, error) {
	key := [2]string{packageID, kind}
	if p, ok := l.memo[key]; ok {
		return p, nil
	}

	base := filepath.Join(l.root, packageID)
	var path string
	switch kind {
	case "LIB":
		path = filepath.Join(base, "lib")
	case "BIN":
		path = filepath.Join(base, "bin")
	case "INCLUDE":
		path = filepath.Join(base, "include")
	case "ETC":
		path = filepath.Join(base, "etc")
	case "ENV", "APP", "PACKAGE":
		path = base
	default:
		return "", xerrors.Errorf("unknown locator kind %q", kind)
	}

	if !exists(path) {
		return "", xerrors.Errorf("package %q not found under %q", packageID, l.root)
	}
	l.memo[key] = path
	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
