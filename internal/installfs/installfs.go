// Package installfs mounts a read-only FUSE view over the shared install
// tree (spec §5: "the install tree is a shared mutable resource"), so
// downstream projects can locate and link against a dependency's installed
// files by path without a flattening copy. Unlike the teacher's
// internal/fuse, which unions several squashfs package images into one
// virtual namespace, bake's install tree is already one real directory
// tree, so this is a much simpler read-only passthrough: every inode maps
// directly to a path under Root, and writes through the mount are refused
// by the kernel because the mount itself is read-only.
package installfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/xerrors"
)

// FS is a read-only, lazily-populated passthrough over the directory tree
// rooted at Root. Inode numbers are assigned on first lookup and are
// stable for the lifetime of the mount.
type FS struct {
	fuseutil.NotImplementedFileSystem

	root string

	mu     sync.Mutex
	paths  map[fuseops.InodeID]string
	inodes map[string]fuseops.InodeID
	next   fuseops.InodeID
}

// New returns an FS serving root. root must be an existing directory (the
// install tree, e.g. env.InstallDir()).
func New(root string) *FS {
	fs := &FS{
		root:   root,
		paths:  map[fuseops.InodeID]string{fuseops.RootInodeID: ""},
		inodes: map[string]fuseops.InodeID{"": fuseops.RootInodeID},
		next:   fuseops.RootInodeID + 1,
	}
	return fs
}

// Mount mounts fs at mountpoint and returns a join function that blocks
// until the mount is unmounted (matching the teacher's Mount/join shape in
// cmd/distri/fuse.go).
func Mount(ctx context.Context, root, mountpoint string) (join func(context.Context) error, err error) {
	if fi, statErr := os.Stat(root); statErr != nil || !fi.IsDir() {
		return nil, xerrors.Errorf("installfs: root %q is not a directory", root)
	}
	fs := New(root)
	server := fuseutil.NewFileSystemServer(fs)
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName:                 "bakeinstall",
		ReadOnly:               true,
		EnableSymlinkCaching:   true,
		EnableNoOpenSupport:    true,
		EnableNoOpendirSupport: true,
	})
	if err != nil {
		return nil, xerrors.Errorf("fuse.Mount: %w", err)
	}
	return func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			fuse.Unmount(mountpoint)
		}()
		return mfs.Join(ctx)
	}, nil
}

// pathFor returns the real filesystem path for inode, under fs.mu.
func (fs *FS) pathFor(inode fuseops.InodeID) (string, bool) {
	p, ok := fs.paths[inode]
	return p, ok
}

// inodeFor allocates (or reuses) the inode for rel, a path relative to root.
func (fs *FS) inodeFor(rel string) fuseops.InodeID {
	if id, ok := fs.inodes[rel]; ok {
		return id
	}
	id := fs.next
	fs.next++
	fs.inodes[rel] = id
	fs.paths[id] = rel
	return id
}

func attributesFor(fi os.FileInfo) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(fi.Size()),
		Nlink: 1,
		Mode:  fi.Mode(),
		Atime: fi.ModTime(),
		Mtime: fi.ModTime(),
		Ctime: fi.ModTime(),
	}
}

func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.IoSize = 65536
	return nil
}

func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, ok := fs.pathFor(op.Parent)
	if !ok {
		return fuse.ENOENT
	}
	rel := filepath.Join(parent, op.Name)
	fi, err := os.Lstat(filepath.Join(fs.root, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return fuse.ENOENT
		}
		return fuse.EIO
	}

	op.Entry.Child = fs.inodeFor(rel)
	op.Entry.Attributes = attributesFor(fi)
	return nil
}

func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	rel, ok := fs.pathFor(op.Inode)
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}
	fi, err := os.Lstat(filepath.Join(fs.root, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return fuse.ENOENT
		}
		return fuse.EIO
	}
	op.Attributes = attributesFor(fi)
	return nil
}

func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	rel, ok := fs.pathFor(op.Inode)
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	entries, err := os.ReadDir(filepath.Join(fs.root, rel))
	if err != nil {
		return fuse.EIO
	}

	fs.mu.Lock()
	dirents := make([]fuseutil.Dirent, 0, len(entries))
	for i, e := range entries {
		typ := fuseutil.DT_File
		if e.IsDir() {
			typ = fuseutil.DT_Directory
		}
		dirents = append(dirents, fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fs.inodeFor(filepath.Join(rel, e.Name())),
			Name:   e.Name(),
			Type:   typ,
		})
	}
	fs.mu.Unlock()

	if op.Offset > fuseops.DirOffset(len(dirents)) {
		return fuse.EIO
	}
	for _, d := range dirents[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], d)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	rel, ok := fs.pathFor(op.Inode)
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	f, err := os.Open(filepath.Join(fs.root, rel))
	if err != nil {
		return fuse.EIO
	}
	defer f.Close()

	n, err := f.ReadAt(op.Dst, op.Offset)
	op.BytesRead = n
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (fs *FS) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	fs.mu.Lock()
	rel, ok := fs.pathFor(op.Inode)
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}
	target, err := os.Readlink(filepath.Join(fs.root, rel))
	if err != nil {
		return fuse.EIO
	}
	op.Target = target
	return nil
}
