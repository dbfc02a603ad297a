package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyTreePreservesContentsAndSkipsVCS(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	os.MkdirAll(filepath.Join(src, "sub"), 0755)
	os.MkdirAll(filepath.Join(src, ".git"), 0755)
	os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0644)
	os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("b"), 0644)
	os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref"), 0644)

	if err := CopyTree(context.Background(), src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	if err != nil || string(got) != "b" {
		t.Fatalf("sub/b.txt = %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dst, ".git")); !os.IsNotExist(err) {
		t.Fatalf(".git was copied, want skipped")
	}
}

func TestInstallFileIsAtomicAndCreatesParents(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.bin")
	os.WriteFile(src, []byte("payload"), 0644)

	dst := filepath.Join(t.TempDir(), "nested", "dir", "dst.bin")
	if err := InstallFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "payload" {
		t.Fatalf("installed file = %q, %v", got, err)
	}
}

func TestClearKeepsMetadataFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "metadata.cpio.gz"), []byte("m"), 0644)
	os.WriteFile(filepath.Join(dir, "payload.bin"), []byte("p"), 0644)

	if err := Clear(dir, "metadata.cpio.gz"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "metadata.cpio.gz")); err != nil {
		t.Fatalf("metadata file removed, want kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "payload.bin")); !os.IsNotExist(err) {
		t.Fatal("payload.bin still present, want removed")
	}
}
