package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLedgerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Ledger{DriverID: "c", DriverVersion: "1.2.3"}
	if err := WriteLedger(dir, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := ReadLedger(dir)
	if err != nil || !ok {
		t.Fatalf("ReadLedger: %v, ok=%v", err, ok)
	}
	if got != want {
		t.Fatalf("ReadLedger = %+v, want %+v", got, want)
	}
}

func TestReadLedgerMissingIsNotAnError(t *testing.T) {
	_, ok, err := ReadLedger(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false for a cache dir with no ledger")
	}
}

func TestStaleDetectsDriverUpgrade(t *testing.T) {
	dir := t.TempDir()
	WriteLedger(dir, Ledger{DriverID: "c", DriverVersion: "1.0.0"})
	if Stale(dir, "c", "1.0.0") {
		t.Fatal("same driver/version reported stale")
	}
	if !Stale(dir, "c", "2.0.0") {
		t.Fatal("upgraded driver version not reported stale")
	}
}

func TestCleanHonoursKeepBinaryWithMultipleProjectsInFlight(t *testing.T) {
	dir := t.TempDir()
	artefact := filepath.Join(t.TempDir(), "out")
	writeFile(t, artefact, "bin")

	if err := Clean(dir, artefact, true, 2); err != nil {
		t.Fatal(err)
	}
	if !fileExists(artefact) {
		t.Fatal("artefact removed despite keep_binary with >1 project in flight")
	}

	if err := Clean(dir, artefact, true, 1); err != nil {
		t.Fatal(err)
	}
	if fileExists(artefact) {
		t.Fatal("artefact not removed when keep_binary and exactly one project in flight")
	}
}

func TestLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log.gz")
	want := []byte("compiling foo.c\nlinking foo\n")
	if err := WriteLog(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Fatalf("ReadLog = %q, want %q", got, want)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
