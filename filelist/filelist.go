// Package filelist implements the ordered, deduplicated sequence of file
// descriptors that flows between rule-graph nodes during evaluation.
package filelist

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File describes a single file as it flows through the rule graph.
//
// Timestamp is 0 when the file does not exist on disk.
type File struct {
	Path      string // relative to the owning Filelist's BasePath, when set
	Name      string
	FullPath  string
	Timestamp uint64
}

// Filelist is an ordered set of Files, deduplicated by FullPath. It is owned
// exclusively by the rule-graph node evaluation frame that produces it;
// nodes never share or reach back into a Filelist they do not own.
type Filelist struct {
	BasePath string
	Pattern  string

	files  []File
	byPath map[string]int // FullPath -> index into files
}

// New creates a Filelist rooted at basePath. If pattern is non-empty, it is
// immediately expanded (shell-glob semantics, "**" matches across directory
// boundaries) and the result populated with on-disk timestamps.
func New(basePath, pattern string) (*Filelist, error) {
	fl := &Filelist{
		BasePath: basePath,
		Pattern:  pattern,
		byPath:   make(map[string]int),
	}
	if pattern != "" {
		if err := fl.AddPattern(basePath, pattern); err != nil {
			return nil, err
		}
	}
	return fl, nil
}

// SetPattern records the pattern this Filelist was (or will be) expanded
// from, without re-expanding it.
func (fl *Filelist) SetPattern(pattern string) {
	fl.Pattern = pattern
}

func normalize(fullPath string) string {
	return filepath.Clean(fullPath)
}

// AddFile appends name (resolved against BasePath) if it is not already
// present (identity by normalised full path) and returns the resulting
// entry. The timestamp is read from the filesystem; a missing file gets
// Timestamp 0, which is not an error.
func (fl *Filelist) AddFile(name string) (File, error) {
	full := name
	if fl.BasePath != "" && !filepath.IsAbs(name) {
		full = filepath.Join(fl.BasePath, name)
	}
	full = normalize(full)

	if idx, ok := fl.byPath[full]; ok {
		return fl.files[idx], nil
	}

	ts, err := lastModified(full)
	if err != nil {
		return File{}, err
	}

	rel := name
	if fl.BasePath != "" {
		if r, err := filepath.Rel(fl.BasePath, full); err == nil {
			rel = r
		}
	}

	f := File{
		Path:      rel,
		Name:      filepath.Base(full),
		FullPath:  full,
		Timestamp: ts,
	}
	fl.append(f)
	return f, nil
}

// AddPattern expands pattern against base and merges the result into fl,
// preserving deterministic lexicographic ordering per directory.
func (fl *Filelist) AddPattern(base, pattern string) error {
	matches, err := expand(base, pattern)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if _, err := fl.AddFile(m); err != nil {
			return err
		}
	}
	return nil
}

// Merge appends every file of src into fl, deduplicating by full path.
func (fl *Filelist) Merge(src *Filelist) {
	if src == nil {
		return
	}
	for _, f := range src.files {
		if _, ok := fl.byPath[f.FullPath]; ok {
			continue
		}
		fl.append(f)
	}
}

func (fl *Filelist) append(f File) {
	fl.byPath[f.FullPath] = len(fl.files)
	fl.files = append(fl.files, f)
}

// Refresh re-stats the file identified by name (resolved the same way
// AddFile resolves it) and updates its timestamp in place, used after a rule
// action successfully (re)writes an output file.
func (fl *Filelist) Refresh(name string) (File, error) {
	full := name
	if fl.BasePath != "" && !filepath.IsAbs(name) {
		full = filepath.Join(fl.BasePath, name)
	}
	full = normalize(full)

	ts, err := lastModified(full)
	if err != nil {
		return File{}, err
	}
	idx, ok := fl.byPath[full]
	if !ok {
		f, err := fl.AddFile(name)
		return f, err
	}
	fl.files[idx].Timestamp = ts
	return fl.files[idx], nil
}

// Iter returns the files in deterministic insertion order.
func (fl *Filelist) Iter() []File {
	return fl.files
}

// Count is O(1).
func (fl *Filelist) Count() int {
	return len(fl.files)
}

// lastModified returns 0 and no error if path does not exist.
func lastModified(path string) (uint64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(fi.ModTime().Unix()), nil
}

// expand resolves a shell-style glob pattern rooted at base, supporting "**"
// to match across directory boundaries. Results are returned sorted
// lexicographically per directory, matching filesystem iteration order on a
// typical ext4/btrfs directory listing once sorted, so that two expansions
// against identical filesystem state are always identical (spec: pattern to
// filelist determinism).
func expand(base, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	if !strings.Contains(pattern, "**") {
		full := pattern
		if base != "" && !filepath.IsAbs(pattern) {
			full = filepath.Join(base, pattern)
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		return matches, nil
	}
	return expandDoublestar(base, pattern)
}

// expandDoublestar implements "**" by walking the tree rooted at base and
// matching each candidate path against the translated pattern segments.
func expandDoublestar(base, pattern string) ([]string, error) {
	segs := strings.Split(filepath.ToSlash(pattern), "/")
	var results []string
	root := base
	if root == "" {
		root = "."
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Missing roots are not an error; an empty filelist is legitimate.
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matchDoublestar(segs, strings.Split(filepath.ToSlash(rel), "/")) {
			results = append(results, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(results)
	return results, nil
}

// matchDoublestar matches path segments against pattern segments where "**"
// consumes zero or more path segments.
func matchDoublestar(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(path); i++ {
			if matchDoublestar(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	ok, err := filepath.Match(pattern[0], path[0])
	if err != nil || !ok {
		return false
	}
	return matchDoublestar(pattern[1:], path[1:])
}
