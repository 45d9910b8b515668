package vfs

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ChangeKind classifies one entry of a Patch.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is one difference between two snapshots.
type Change struct {
	Path    string
	Kind    ChangeKind
	Dir     bool
	Old     []byte // content in the other snapshot; nil for Added
	New     []byte // content in this snapshot; nil for Removed
	OldTime time.Time
	NewTime time.Time
}

// ContentChanged reports whether a Modified change altered bytes rather
// than only the modification time.
func (c Change) ContentChanged() bool {
	return c.Kind != Modified || !bytes.Equal(c.Old, c.New)
}

// Patch is an ordered list of changes, sorted by path.
type Patch []Change

// Empty reports whether the patch has no changes.
func (p Patch) Empty() bool { return len(p) == 0 }

// Paths returns the path of every change in order.
func (p Patch) Paths() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Path
	}
	return out
}

// Find returns the change recorded for path, if any.
func (p Patch) Find(path string) (Change, bool) {
	path = Clean(path)
	for _, c := range p {
		if c.Path == path {
			return c, true
		}
	}
	return Change{}, false
}

// Invert returns the patch that undoes p: additions become removals and old
// and new sides swap.
func (p Patch) Invert() Patch {
	out := make(Patch, len(p))
	for i, c := range p {
		inv := Change{
			Path:    c.Path,
			Dir:     c.Dir,
			Old:     c.New,
			New:     c.Old,
			OldTime: c.NewTime,
			NewTime: c.OldTime,
		}
		switch c.Kind {
		case Added:
			inv.Kind = Removed
		case Removed:
			inv.Kind = Added
		default:
			inv.Kind = Modified
		}
		out[i] = inv
	}
	sortPatch(out)
	return out
}

type diffConfig struct {
	modTimes bool
}

// DiffOption tunes Diff.
type DiffOption func(*diffConfig)

// WithModTimes also reports files whose content is equal but whose
// modification time differs.
func WithModTimes() DiffOption {
	return func(c *diffConfig) { c.modTimes = true }
}

// Diff compares f against other. Paths only in f are Added, paths only in
// other are Removed, and files whose content differs are Modified. Subtrees
// shared by both snapshots are skipped without being visited. Neither
// snapshot is modified.
func (f *FS) Diff(other *FS, opts ...DiffOption) Patch {
	var cfg diffConfig
	for _, o := range opts {
		o(&cfg)
	}
	d := differ{cfg: cfg, key: f.key}
	d.dir("/", f.root, other.root)
	sortPatch(d.out)
	return d.out
}

type differ struct {
	cfg diffConfig
	key func(string) string
	out Patch
}

func (d *differ) dir(p string, mine, theirs *node) {
	if mine == theirs {
		return
	}
	seen := make(map[string]bool, len(mine.children))
	for k, a := range mine.children {
		seen[k] = true
		d.entry(Join(p, a.name), a, theirs.children[k])
	}
	for k, b := range theirs.children {
		if !seen[k] {
			d.entry(Join(p, b.name), nil, b)
		}
	}
}

func (d *differ) entry(p string, a, b *node) {
	switch {
	case a == b:
	case b == nil:
		d.all(p, a, Added)
	case a == nil:
		d.all(p, b, Removed)
	case a.dir && b.dir:
		d.dir(p, a, b)
	case !a.dir && !b.dir:
		same := bytes.Equal(a.data, b.data)
		if same && (!d.cfg.modTimes || a.modTime.Equal(b.modTime)) {
			return
		}
		d.out = append(d.out, Change{
			Path: p, Kind: Modified,
			Old: b.data, New: a.data,
			OldTime: b.modTime, NewTime: a.modTime,
		})
	default:
		// A file replaced a directory or the other way round.
		d.all(p, b, Removed)
		d.all(p, a, Added)
	}
}

func (d *differ) all(p string, n *node, kind ChangeKind) {
	c := Change{Path: p, Kind: kind, Dir: n.dir}
	if kind == Added {
		c.New, c.NewTime = n.data, n.modTime
	} else {
		c.Old, c.OldTime = n.data, n.modTime
	}
	d.out = append(d.out, c)
	for _, child := range sortedChildren(n) {
		d.all(Join(p, child.name), child, kind)
	}
}

// sortPatch orders by path. For a path that is both removed and added
// (type change) the removal comes first.
func sortPatch(p Patch) {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Path != p[j].Path {
			return p[i].Path < p[j].Path
		}
		return p[i].Kind == Removed && p[j].Kind != Removed
	})
}

// Apply replays p onto f so that f ends up equal to the snapshot p was
// computed from. Removals beneath an already removed directory are skipped:
// the subtree went with it, and the path may now name a file.
func (f *FS) Apply(p Patch) error {
	var removed []string
	for _, c := range p {
		if c.Kind == Removed && f.underRemoved(c.Path, removed) {
			continue
		}
		if err := f.apply(c); err != nil {
			return fmt.Errorf("%s %s: %w", OpApply, c.Path, err)
		}
		if c.Kind == Removed && c.Dir {
			removed = append(removed, c.Path)
		}
	}
	return nil
}

func (f *FS) underRemoved(p string, removed []string) bool {
	for _, r := range removed {
		if p != r && HasPrefix(p, r, f.opts.IgnoreCase) {
			return true
		}
	}
	return false
}

func (f *FS) apply(c Change) error {
	switch c.Kind {
	case Removed:
		err := f.Remove(c.Path)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	case Added:
		if c.Dir {
			return f.MkdirAll(c.Path)
		}
		if err := f.MkdirAll(Dir(c.Path)); err != nil {
			return err
		}
		fallthrough
	default:
		if err := f.WriteFile(c.Path, c.New); err != nil {
			return err
		}
		return f.Touch(c.Path, c.NewTime)
	}
}
