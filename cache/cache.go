// Package cache implements the per-project build cache: a directory keyed
// by project id and platform+config, holding a small invalidation ledger
// (driver id and version) plus compressed build logs. Generalised from
// bake's cache-path construction in src/build.c and the teacher's
// internal/squashfs compression use.
package cache

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bakegraph/bake/internal/fsutil"
	"github.com/klauspost/compress/gzip"
	"github.com/protocolbuffers/txtpbfmt/parser"
	"golang.org/x/xerrors"
)

// Dir returns the cache directory for a project id under a given
// platform+config (e.g. "amd64-debug"), rooted at root.
func Dir(root, projectID, platformConfig string) string {
	return filepath.Join(root, projectID, platformConfig)
}

// ledgerName is the invalidation marker file within a cache directory.
const ledgerName = "ledger.textpb"

// Ledger records which driver (and version) produced a cache directory's
// contents, so an upgraded driver invalidates a stale cache transparently.
type Ledger struct {
	DriverID      string
	DriverVersion string
}

// WriteLedger serialises l as pretty-printed textproto-syntax bytes (via
// txtpbfmt, which formats raw text and needs no generated proto.Message
// type) and installs it atomically-enough for a build-local cache: a
// plain write, since the cache directory is private to this project's
// build and not the shared install tree.
func WriteLedger(dir string, l Ledger) error {
	if err := fsutil.MkdirAll(dir); err != nil {
		return err
	}
	raw := []byte(fmt.Sprintf("driver_id: %q\ndriver_version: %q\n", l.DriverID, l.DriverVersion))
	pretty, err := parser.Format(raw)
	if err != nil {
		// Formatting is cosmetic; fall back to the raw bytes rather than
		// failing the build over a pretty-printer error.
		pretty = raw
	}
	return os.WriteFile(filepath.Join(dir, ledgerName), pretty, 0644)
}

// ReadLedger reads back a previously written ledger. A missing ledger
// (first build, or a cache wiped by clean-cache) is reported as ok=false,
// not an error.
func ReadLedger(dir string) (l Ledger, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, ledgerName))
	if err != nil {
		if os.IsNotExist(err) {
			return Ledger{}, false, nil
		}
		return Ledger{}, false, xerrors.Errorf("reading cache ledger: %w", err)
	}
	l = parseLedger(data)
	return l, true, nil
}

func parseLedger(data []byte) Ledger {
	var l Ledger
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		switch {
		case bytes.HasPrefix(line, []byte("driver_id:")):
			l.DriverID = unquote(line, "driver_id:")
		case bytes.HasPrefix(line, []byte("driver_version:")):
			l.DriverVersion = unquote(line, "driver_version:")
		}
	}
	return l
}

func unquote(line []byte, prefix string) string {
	v := bytes.TrimSpace(line[len(prefix):])
	return string(bytes.Trim(v, `"`))
}

// Stale reports whether the cache at dir was produced by a different
// driver or driver version than (driverID, driverVersion) — and is
// therefore no longer trustworthy (SPEC_FULL.md §3 domain stack: cache
// invalidation on driver upgrade).
func Stale(dir, driverID, driverVersion string) bool {
	l, ok, err := ReadLedger(dir)
	if err != nil || !ok {
		return false
	}
	return l.DriverID != driverID || l.DriverVersion != driverVersion
}

// Clean implements build pipeline step 4 (spec §4.6): remove the
// project's cache directory for the current platform+config. artefact, if
// non-empty, is additionally removed unless keepBinary is true and more
// than one project is currently under build (projectsInFlight > 1).
func Clean(dir string, artefact string, keepBinary bool, projectsInFlight int) error {
	if err := fsutil.RemoveTree(dir); err != nil {
		return xerrors.Errorf("clean-cache: %w", err)
	}
	if artefact == "" {
		return nil
	}
	if keepBinary && projectsInFlight > 1 {
		return nil
	}
	if err := fsutil.Remove(artefact); err != nil {
		return xerrors.Errorf("clean-cache: removing artefact: %w", err)
	}
	return nil
}

// WriteLog compresses a build log with gzip (via klauspost/compress,
// which the cache package uses for ordinary one-shot writes; the
// concurrent/streaming pgzip variant is used by the metadata package for
// larger archival writes).
func WriteLog(path string, contents []byte) error {
	if err := fsutil.MkdirAll(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return xerrors.Errorf("creating build log %q: %w", path, err)
	}
	defer f.Close()
	gw := gzip.NewWriter(f)
	if _, err := gw.Write(contents); err != nil {
		return xerrors.Errorf("writing build log %q: %w", path, err)
	}
	return gw.Close()
}

// ReadLog decompresses a build log written by WriteLog.
func ReadLog(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("opening build log %q: %w", path, err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, xerrors.Errorf("decompressing build log %q: %w", path, err)
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
