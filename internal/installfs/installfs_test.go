package installfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
)

func TestLookUpInodeAndReadDirResolveRealTree(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "foo", "lib"), 0755)
	os.WriteFile(filepath.Join(root, "foo", "lib", "libfoo.a"), []byte("ar"), 0644)

	fs := New(root)

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "foo"}
	if err := fs.LookUpInode(context.Background(), lookup); err != nil {
		t.Fatalf("LookUpInode(foo): %v", err)
	}
	if !lookup.Entry.Attributes.Mode.IsDir() {
		t.Fatal("expected foo to be a directory")
	}

	lookup2 := &fuseops.LookUpInodeOp{Parent: lookup.Entry.Child, Name: "lib"}
	if err := fs.LookUpInode(context.Background(), lookup2); err != nil {
		t.Fatalf("LookUpInode(foo/lib): %v", err)
	}

	readDir := &fuseops.ReadDirOp{Inode: lookup2.Entry.Child, Dst: make([]byte, 4096)}
	if err := fs.ReadDir(context.Background(), readDir); err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if readDir.BytesRead == 0 {
		t.Fatal("expected ReadDir to write at least one dirent")
	}
}

func TestLookUpInodeMissingChildIsENOENT(t *testing.T) {
	root := t.TempDir()
	fs := New(root)

	op := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "missing"}
	if err := fs.LookUpInode(context.Background(), op); err == nil {
		t.Fatal("expected ENOENT for a nonexistent child")
	}
}

func TestReadFileReturnsFileContents(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello world"), 0644)
	fs := New(root)

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "hello.txt"}
	if err := fs.LookUpInode(context.Background(), lookup); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 5)
	op := &fuseops.ReadFileOp{Inode: lookup.Entry.Child, Dst: buf}
	if err := fs.ReadFile(context.Background(), op); err != nil {
		t.Fatal(err)
	}
	if op.BytesRead != 5 || string(buf) != "hello" {
		t.Fatalf("ReadFile = %q, %d bytes, want \"hello\", 5", buf, op.BytesRead)
	}
}
