// Package nfsmount serves a frozen vfs snapshot over NFS so a phase's
// filesystem state can be browsed with ordinary tools. It adapts vfs.FS
// to billy.Filesystem for use with willscott/go-nfs.
package nfsmount

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/buildverify/internal/vfs"
)

var errReadOnly = errors.New("read-only filesystem")

// SnapshotFS is a read-only billy.Filesystem over one snapshot. Virtual
// files sit at the root next to the snapshot's own entries and win on a
// name clash.
type SnapshotFS struct {
	snap    *vfs.FS
	virtual map[string][]byte // base name -> content
	created time.Time
}

// NewSnapshotFS freezes a shadow of f and serves it. virtual maps root
// level names (e.g. "_patch.txt") to generated content.
func NewSnapshotFS(f *vfs.FS, virtual map[string][]byte) *SnapshotFS {
	snap := f.Shadow()
	snap.MakeReadonly()
	created := time.Time{}
	if root, err := snap.Stat("/"); err == nil {
		created = root.ModTime()
	}
	return &SnapshotFS{snap: snap, virtual: virtual, created: created}
}

// --- billy.Basic ---

func (fs *SnapshotFS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *SnapshotFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *SnapshotFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
	}
	if data, ok := fs.virtualFile(filename); ok {
		return newSnapshotFile(filename, data), nil
	}

	info, err := fs.snap.Stat(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errors.New("is a directory")}
	}
	data, err := fs.snap.ReadFile(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	return newSnapshotFile(filename, data), nil
}

func (fs *SnapshotFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *SnapshotFS) Rename(oldpath, newpath string) error { return errReadOnly }
func (fs *SnapshotFS) Remove(filename string) error         { return errReadOnly }

func (fs *SnapshotFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *SnapshotFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *SnapshotFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)
	entries, err := fs.snap.ReadDir(path)
	if err != nil {
		if errors.Is(err, vfs.ErrNotADir) {
			return nil, &os.PathError{Op: "readdir", Path: path, Err: errors.New("not a directory")}
		}
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}

	infos := make([]os.FileInfo, 0, len(entries)+len(fs.virtual))
	for _, e := range entries {
		if path == "/" && fs.virtual[e.Name()] != nil {
			continue
		}
		infos = append(infos, toFileInfo(e))
	}
	if path == "/" {
		for _, name := range fs.virtualNames() {
			infos = append(infos, fs.virtualInfo(name))
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	}
	return infos, nil
}

func (fs *SnapshotFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *SnapshotFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)
	if _, ok := fs.virtualFile(filename); ok {
		return fs.virtualInfo(filepath.Base(filename)), nil
	}
	info, err := fs.snap.Stat(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	fi := toFileInfo(info)
	if filename == "/" {
		fi.name = "/"
	}
	return fi, nil
}

func (fs *SnapshotFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *SnapshotFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *SnapshotFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *SnapshotFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *SnapshotFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

func (fs *SnapshotFS) virtualFile(filename string) ([]byte, bool) {
	if filepath.Dir(filename) != "/" {
		return nil, false
	}
	data, ok := fs.virtual[filepath.Base(filename)]
	return data, ok
}

func (fs *SnapshotFS) virtualNames() []string {
	names := make([]string, 0, len(fs.virtual))
	for name := range fs.virtual {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (fs *SnapshotFS) virtualInfo(name string) *staticFileInfo {
	return &staticFileInfo{
		name:    name,
		size:    int64(len(fs.virtual[name])),
		mode:    0o444,
		modTime: fs.created,
	}
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	return vfs.Clean(path)
}

func toFileInfo(info vfs.Info) *staticFileInfo {
	mode := os.FileMode(0o444)
	if info.IsDir() {
		mode = os.ModeDir | 0o555
	}
	return &staticFileInfo{
		name:    info.Name(),
		size:    info.Size(),
		mode:    mode,
		modTime: info.ModTime(),
	}
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() any           { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*SnapshotFS)(nil)
	_ billy.Capable    = (*SnapshotFS)(nil)
	_ billy.File       = (*snapshotFile)(nil)
)
