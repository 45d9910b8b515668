// Package vfs implements an in-memory filesystem with cheap copy-on-write
// snapshots and structural diffing.
//
// An FS is a root pointer into a persistent tree. Shadow returns a new FS
// sharing every node with its parent; a later write on either side clones
// only the nodes on the path from the root to the target. A frozen FS
// (MakeReadonly) is safe for concurrent readers. Mutation is single-threaded.
package vfs

import (
	"bytes"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/buildverify/internal/clock"
)

// Clock supplies modification times for writes.
type Clock interface {
	Now() time.Time
}

// Options configure a new filesystem. They are inherited by shadows.
type Options struct {
	// Clock stamps writes. Defaults to a fresh logical clock.
	Clock Clock
	// IgnoreCase makes name lookup case-insensitive. Names keep the
	// spelling they were created with.
	IgnoreCase bool
}

// FS is one snapshot of the tree.
type FS struct {
	root     *node
	gen      uint64
	opts     Options
	readonly bool
	paths    *pathTable
	changed  *roaring.Bitmap
}

// New returns an empty filesystem containing only the root directory.
func New(opts Options) *FS {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	gen := nextGen()
	return &FS{
		root:    newDir("", opts.Clock.Now(), gen),
		gen:     gen,
		opts:    opts,
		paths:   newPathTable(),
		changed: roaring.New(),
	}
}

// Clock returns the clock used to stamp writes.
func (f *FS) Clock() Clock { return f.opts.Clock }

// IgnoreCase reports whether lookups fold case.
func (f *FS) IgnoreCase() bool { return f.opts.IgnoreCase }

func (f *FS) key(name string) string {
	if f.opts.IgnoreCase {
		return strings.ToLower(name)
	}
	return name
}

// Shadow returns a writable snapshot that shares all nodes with f. Neither
// snapshot observes the other's later mutations.
func (f *FS) Shadow() *FS {
	if !f.readonly {
		// f gives up in-place ownership of every node it has built so far.
		f.gen = nextGen()
	}
	return &FS{
		root:    f.root,
		gen:     nextGen(),
		opts:    f.opts,
		paths:   f.paths,
		changed: roaring.New(),
	}
}

// MakeReadonly freezes the snapshot. Every later mutation fails with
// ErrReadOnly. Shadows of a frozen snapshot are writable.
func (f *FS) MakeReadonly() { f.readonly = true }

// IsReadonly reports whether the snapshot is frozen.
func (f *FS) IsReadonly() bool { return f.readonly }

// lookup resolves p without modifying anything.
func (f *FS) lookup(op, p string) (*node, error) {
	cur := f.root
	for _, part := range Split(p) {
		if !cur.dir {
			return nil, newError(op, p, ErrNotADir)
		}
		child, ok := cur.children[f.key(part)]
		if !ok {
			return nil, newError(op, p, ErrNotFound)
		}
		cur = child
	}
	return cur, nil
}

// ownDir returns the directory at parts, cloning every node on the way down
// that this snapshot does not already own. Callers validate the path first.
func (f *FS) ownDir(parts []string) *node {
	if f.root.gen != f.gen {
		f.root = f.root.clone(f.gen)
	}
	cur := f.root
	for _, part := range parts {
		k := f.key(part)
		child := cur.children[k]
		if child.gen != f.gen {
			child = child.clone(f.gen)
			cur.children[k] = child
		}
		cur = child
	}
	return cur
}

// parentOf validates that the parent of p is an existing directory.
func (f *FS) parentOf(op, p string) ([]string, string, error) {
	parts := Split(p)
	if len(parts) == 0 {
		return nil, "", newError(op, p, ErrInvalidPath)
	}
	parent, err := f.lookup(op, Dir(p))
	if err != nil {
		return nil, "", err
	}
	if !parent.dir {
		return nil, "", newError(op, p, ErrNotADir)
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

func (f *FS) markChanged(p string) {
	if f.opts.IgnoreCase {
		p = strings.ToLower(p)
	}
	f.changed.Add(f.paths.intern(p))
}

func (f *FS) checkWritable(op, p string) error {
	if f.readonly {
		return newError(op, p, ErrReadOnly)
	}
	return nil
}

// ReadFile returns a copy of the content of the file at p.
func (f *FS) ReadFile(p string) ([]byte, error) {
	p = Clean(p)
	n, err := f.lookup(OpRead, p)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, newError(OpRead, p, ErrNotAFile)
	}
	return bytes.Clone(n.data), nil
}

// WriteFile creates or replaces the file at p and stamps it with the clock's
// current time. The parent directory must already exist.
func (f *FS) WriteFile(p string, data []byte) error {
	p = Clean(p)
	if err := f.checkWritable(OpWrite, p); err != nil {
		return err
	}
	dirParts, name, err := f.parentOf(OpWrite, p)
	if err != nil {
		return err
	}
	parent, _ := f.lookup(OpWrite, Dir(p))
	if existing, ok := parent.children[f.key(name)]; ok {
		if existing.dir {
			return newError(OpWrite, p, ErrNotAFile)
		}
		name = existing.name
	}

	dir := f.ownDir(dirParts)
	dir.children[f.key(name)] = newFile(name, bytes.Clone(data), f.opts.Clock.Now(), f.gen)
	f.markChanged(p)
	return nil
}

// Touch sets the modification time of an existing file.
func (f *FS) Touch(p string, t time.Time) error {
	p = Clean(p)
	if err := f.checkWritable(OpTouch, p); err != nil {
		return err
	}
	n, err := f.lookup(OpTouch, p)
	if err != nil {
		return err
	}
	if n.dir {
		return newError(OpTouch, p, ErrNotAFile)
	}

	parts := Split(p)
	dir := f.ownDir(parts[:len(parts)-1])
	k := f.key(parts[len(parts)-1])
	file := dir.children[k]
	if file.gen != f.gen {
		file = file.clone(f.gen)
		dir.children[k] = file
	}
	file.modTime = t
	f.markChanged(p)
	return nil
}

// Remove deletes the node at p. Directories are removed with all their
// descendants. A missing path is an error.
func (f *FS) Remove(p string) error {
	p = Clean(p)
	if err := f.checkWritable(OpRemove, p); err != nil {
		return err
	}
	dirParts, name, err := f.parentOf(OpRemove, p)
	if err != nil {
		return err
	}
	if _, err := f.lookup(OpRemove, p); err != nil {
		return err
	}

	dir := f.ownDir(dirParts)
	delete(dir.children, f.key(name))
	f.markChanged(p)
	return nil
}

// Mkdir creates a single directory. The parent must exist.
func (f *FS) Mkdir(p string) error {
	p = Clean(p)
	if err := f.checkWritable(OpMkdir, p); err != nil {
		return err
	}
	dirParts, name, err := f.parentOf(OpMkdir, p)
	if err != nil {
		return err
	}
	if _, err := f.lookup(OpMkdir, p); err == nil {
		return newError(OpMkdir, p, ErrExists)
	}

	dir := f.ownDir(dirParts)
	dir.children[f.key(name)] = newDir(name, f.opts.Clock.Now(), f.gen)
	f.markChanged(p)
	return nil
}

// MkdirAll creates p and any missing ancestors. Existing directories are
// left alone; an existing file on the way is ErrNotADir.
func (f *FS) MkdirAll(p string) error {
	p = Clean(p)
	if err := f.checkWritable(OpMkdir, p); err != nil {
		return err
	}
	cur := "/"
	for _, part := range Split(p) {
		cur = Join(cur, part)
		n, err := f.lookup(OpMkdir, cur)
		switch {
		case err == nil && n.dir:
			continue
		case err == nil:
			return newError(OpMkdir, cur, ErrNotADir)
		}
		if err := f.Mkdir(cur); err != nil {
			return err
		}
	}
	return nil
}

// Stat describes the node at p.
func (f *FS) Stat(p string) (Info, error) {
	p = Clean(p)
	n, err := f.lookup(OpStat, p)
	if err != nil {
		return Info{}, err
	}
	return newInfo(p, n), nil
}

// Exists reports whether p resolves to any node.
func (f *FS) Exists(p string) bool {
	_, err := f.lookup(OpStat, Clean(p))
	return err == nil
}

// IsFile reports whether p resolves to a file.
func (f *FS) IsFile(p string) bool {
	n, err := f.lookup(OpStat, Clean(p))
	return err == nil && !n.dir
}

// ReadDir lists the entries of the directory at p sorted by name.
func (f *FS) ReadDir(p string) ([]Info, error) {
	p = Clean(p)
	n, err := f.lookup(OpList, p)
	if err != nil {
		return nil, err
	}
	if !n.dir {
		return nil, newError(OpList, p, ErrNotADir)
	}
	out := make([]Info, 0, len(n.children))
	for _, child := range sortedChildren(n) {
		out = append(out, newInfo(Join(p, child.name), child))
	}
	return out, nil
}

// WalkFunc is called for every node visited by Walk. Returning fs.SkipDir
// for a directory skips its contents.
type WalkFunc func(p string, info Info) error

// Walk visits root and everything beneath it in lexicographic order,
// directories before their contents.
func (f *FS) Walk(root string, fn WalkFunc) error {
	root = Clean(root)
	n, err := f.lookup(OpList, root)
	if err != nil {
		return err
	}
	err = walk(root, n, fn)
	if err == fs.SkipDir {
		return nil
	}
	return err
}

func walk(p string, n *node, fn WalkFunc) error {
	if err := fn(p, newInfo(p, n)); err != nil {
		return err
	}
	if !n.dir {
		return nil
	}
	for _, child := range sortedChildren(n) {
		err := walk(Join(p, child.name), child, fn)
		if err == fs.SkipDir && child.dir {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Files returns the paths of every file under root, sorted.
func (f *FS) Files(root string) ([]string, error) {
	var out []string
	err := f.Walk(root, func(p string, info Info) error {
		if !info.IsDir() {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// ChangedPaths returns the paths mutated on this snapshot since it was
// created, sorted. With IgnoreCase the paths are lower-cased.
func (f *FS) ChangedPaths() []string {
	return f.paths.resolve(f.changed)
}

// WasChanged reports whether p was mutated on this snapshot.
func (f *FS) WasChanged(p string) bool {
	p = Clean(p)
	if f.opts.IgnoreCase {
		p = strings.ToLower(p)
	}
	id, ok := f.paths.lookup(p)
	return ok && f.changed.Contains(id)
}

func sortedChildren(n *node) []*node {
	out := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
