package metadata

import (
	"encoding/json"
	"testing"

	"github.com/bakegraph/bake/project"
)

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := &project.Project{
		ID:      "foo",
		Type:    project.TypeApplication,
		Version: "1.0",
		Drivers: []project.DriverBinding{
			{Driver: "c", Attributes: map[string]json.RawMessage{"cflags": json.RawMessage(`["-O2"]`)}},
		},
	}

	if err := Export(p, dir); err != nil {
		t.Fatal(err)
	}

	raw, err := Import(dir)
	if err != nil {
		t.Fatal(err)
	}
	var id string
	if err := json.Unmarshal(raw["id"], &id); err != nil {
		t.Fatal(err)
	}
	if id != "foo" {
		t.Fatalf("id = %q, want foo", id)
	}
}
