package filelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, n)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNewExpandsPattern(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.c", "b.c", "sub/c.c")

	fl, err := New(root, "*.c")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fl.Count(), 2; got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}
}

func TestDoublestarCrossesDirectories(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.c", "sub/b.c", "sub/deep/c.c")

	fl, err := New(root, "**/*.c")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fl.Count(), 3; got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}
}

func TestAddFileDedupesByFullPath(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.c")

	fl, err := New(root, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fl.AddFile("a.c"); err != nil {
		t.Fatal(err)
	}
	if _, err := fl.AddFile("a.c"); err != nil {
		t.Fatal(err)
	}
	if got, want := fl.Count(), 1; got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}
}

func TestMergeDedupes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.c", "b.c")

	a, err := New(root, "")
	if err != nil {
		t.Fatal(err)
	}
	a.AddFile("a.c")

	b, err := New(root, "")
	if err != nil {
		t.Fatal(err)
	}
	b.AddFile("a.c")
	b.AddFile("b.c")

	a.Merge(b)
	if got, want := a.Count(), 2; got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	root := t.TempDir()
	fl, err := New(root, "")
	if err != nil {
		t.Fatal(err)
	}
	f, err := fl.AddFile("nonexistent.c")
	if err != nil {
		t.Fatal(err)
	}
	if f.Timestamp != 0 {
		t.Fatalf("Timestamp = %d, want 0 for missing file", f.Timestamp)
	}
}

func TestExpansionIsDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "z.c", "a.c", "m.c")

	fl1, err := New(root, "*.c")
	if err != nil {
		t.Fatal(err)
	}
	fl2, err := New(root, "*.c")
	if err != nil {
		t.Fatal(err)
	}
	paths := func(it []File) []string {
		out := make([]string, len(it))
		for i, f := range it {
			out[i] = f.FullPath
		}
		return out
	}
	if diff := cmp.Diff(paths(fl1.Iter()), paths(fl2.Iter())); diff != "" {
		t.Fatalf("expansion order mismatch (-fl1 +fl2):\n%s", diff)
	}
}
