// Package metadata implements build pipeline step 1, install-metadata
// (spec §4.6): for public projects, the manifest and its evaluated
// attributes are archived as a single cpio stream into the install tree,
// grounded on the teacher's cmd/distri/initrd.go cpio archival of package
// metadata into the initrd.
package metadata

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/bakegraph/bake/internal/fsutil"
	"github.com/bakegraph/bake/project"
	"github.com/cavaliercoder/go-cpio"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// FileName is the name of the archived metadata blob within a project's
// install directory.
const FileName = "metadata.cpio.gz"

// record mirrors the manifest subset worth re-exporting: identity, type,
// and the raw driver bindings (post attribute-evaluation).
type record struct {
	ID       string                     `json:"id"`
	Type     string                     `json:"type"`
	Version  string                     `json:"version,omitempty"`
	Drivers  []driverRecord             `json:"drivers,omitempty"`
}

type driverRecord struct {
	Driver     string                     `json:"driver"`
	Attributes map[string]json.RawMessage `json:"attributes,omitempty"`
}

// Export writes p's manifest metadata as a gzip-compressed cpio archive
// at <installDir>/metadata.cpio.gz, containing a single entry
// "metadata.json". pgzip (rather than cache's plain gzip) is used here
// because metadata archives are written once per public project and can
// be large enough for parallel-block compression to matter across a
// whole crawler run.
func Export(p *project.Project, installDir string) error {
	rec := record{ID: p.ID, Type: p.Type.String(), Version: p.Version}
	for _, b := range p.Drivers {
		rec.Drivers = append(rec.Drivers, driverRecord{Driver: b.Driver, Attributes: b.Attributes})
	}

	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshalling metadata for %q: %w", p.ID, err)
	}

	if err := fsutil.MkdirAll(installDir); err != nil {
		return err
	}

	var archive bytes.Buffer
	w := cpio.NewWriter(&archive)
	if err := w.WriteHeader(&cpio.Header{
		Name: "metadata.json",
		Mode: cpio.FileMode(0644),
		Size: int64(len(payload)),
	}); err != nil {
		return xerrors.Errorf("writing cpio header for %q: %w", p.ID, err)
	}
	if _, err := w.Write(payload); err != nil {
		return xerrors.Errorf("writing cpio entry for %q: %w", p.ID, err)
	}
	if err := w.Close(); err != nil {
		return xerrors.Errorf("closing cpio archive for %q: %w", p.ID, err)
	}

	out, err := os.Create(filepath.Join(installDir, FileName))
	if err != nil {
		return xerrors.Errorf("creating metadata archive for %q: %w", p.ID, err)
	}
	defer out.Close()

	gw := pgzip.NewWriter(out)
	if _, err := gw.Write(archive.Bytes()); err != nil {
		return xerrors.Errorf("compressing metadata archive for %q: %w", p.ID, err)
	}
	return gw.Close()
}

// Import reads back a metadata archive written by Export.
func Import(installDir string) (map[string]json.RawMessage, error) {
	f, err := os.Open(filepath.Join(installDir, FileName))
	if err != nil {
		return nil, xerrors.Errorf("opening metadata archive: %w", err)
	}
	defer f.Close()

	gr, err := pgzip.NewReader(f)
	if err != nil {
		return nil, xerrors.Errorf("decompressing metadata archive: %w", err)
	}
	defer gr.Close()

	r := cpio.NewReader(gr)
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("reading cpio archive: %w", err)
		}
		if hdr.Name != "metadata.json" {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, xerrors.Errorf("reading metadata.json entry: %w", err)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, xerrors.Errorf("unmarshalling metadata.json: %w", err)
		}
		return raw, nil
	}
	return nil, xerrors.Errorf("metadata archive missing metadata.json entry")
}
