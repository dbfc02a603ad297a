package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "project.json"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseTrivialProject(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"id":"foo","type":"application","value":{"language":"c"}}`)

	p, err := Parse(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "foo" {
		t.Fatalf("ID = %q", p.ID)
	}
	if p.Type != TypeApplication {
		t.Fatalf("Type = %v", p.Type)
	}
	if p.Language != "c" {
		t.Fatalf("Language = %q", p.Language)
	}
	if got, want := p.Sources, []string{"src"}; len(got) != 1 || got[0] != want[0] {
		t.Fatalf("Sources = %v, want %v", got, want)
	}
}

func TestParseMissingID(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"type":"application"}`)
	if _, err := Parse(dir, nil); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestParseInvalidID(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"id":"foo bar"}`)
	_, err := Parse(dir, nil)
	if err == nil {
		t.Fatal("expected error for invalid id")
	}
	if _, ok := err.(*InvalidIDError); !ok {
		t.Fatalf("got %T, want *InvalidIDError", err)
	}
}

func TestParseUnknownValueKeyIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"id":"foo","value":{"bogus":true}}`)
	if _, err := Parse(dir, nil); err == nil {
		t.Fatal("expected error for unknown value key")
	}
}

func TestParseDeprecatedTypeAliases(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"id":"foo","type":"executable"}`)
	var warned string
	p, err := Parse(dir, func(msg string) { warned = msg })
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != TypeApplication {
		t.Fatalf("Type = %v, want TypeApplication", p.Type)
	}
	if warned == "" {
		t.Fatal("expected a deprecation warning")
	}
}

func TestIdentityNormalisation(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"id":"com.example.foo"}`)
	p, err := Parse(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "com/example/foo" {
		t.Fatalf("ID = %q", p.ID)
	}
	if p.IDUnderscore != "com_example_foo" {
		t.Fatalf("IDUnderscore = %q", p.IDUnderscore)
	}
	if p.IDDash != "com-example-foo" {
		t.Fatalf("IDDash = %q", p.IDDash)
	}
	if p.IDBase != "foo" {
		t.Fatalf("IDBase = %q", p.IDBase)
	}
}

func TestDriverBindingsCaptured(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"id":"foo","c":{"cflags":["-O2"]}}`)
	p, err := Parse(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Drivers) != 1 || p.Drivers[0].Driver != "c" {
		t.Fatalf("Drivers = %+v", p.Drivers)
	}
}

func TestParseDependeeRejectsReservedKeys(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dependee.json"), []byte(`{"id":"nope"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseDependee(dir); err == nil {
		t.Fatal("expected error for reserved key in dependee.json")
	}
}

func TestMergeDependeeMergesDriverSections(t *testing.T) {
	p := &Project{
		Drivers: []DriverBinding{
			{Driver: "c", RawJSON: json.RawMessage(`{"cflags":["-O2"]}`)},
		},
	}
	dependee := map[string]json.RawMessage{
		"c": json.RawMessage(`{"include":["/pkg/foo/include"]}`),
	}
	if err := MergeDependee(p, dependee); err != nil {
		t.Fatal(err)
	}
	if len(p.Drivers) != 1 {
		t.Fatalf("Drivers = %+v", p.Drivers)
	}
}
