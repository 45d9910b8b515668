// Package fixture moves file trees between billy filesystems and vfs
// snapshots. Scenarios load their base state from a directory on disk or
// an in-memory map; failed phases can be dumped back out for inspection.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/buildverify/internal/vfs"
)

// Options control how a tree is loaded.
type Options struct {
	// Mount is where the tree lands in the snapshot. Defaults to "/".
	Mount string
	// Skip lists base names whose files and directories are ignored,
	// matched with filepath.Match.
	Skip []string
}

// DefaultSkip keeps version-control metadata out of fixtures.
var DefaultSkip = []string{".git", ".hg", ".svn"}

// Load copies every file and directory of src into dst. Loaded files are
// stamped with dst's clock, not the source modification times, so runs
// stay deterministic.
func Load(src billy.Filesystem, dst *vfs.FS, opts Options) error {
	mount := vfs.Clean(opts.Mount)
	if err := dst.MkdirAll(mount); err != nil {
		return fmt.Errorf("mount %s: %w", mount, err)
	}
	return util.Walk(src, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p != "/" && skipped(info.Name(), opts.Skip) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := vfs.Join(mount, p)
		if info.IsDir() {
			return dst.MkdirAll(target)
		}
		data, err := util.ReadFile(src, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		return dst.WriteFile(target, data)
	})
}

func skipped(name string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// LoadDir loads a directory on disk, skipping DefaultSkip.
func LoadDir(dir string, dst *vfs.FS, mount string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("fixture dir: %w", err)
	}
	return Load(osfs.New(dir), dst, Options{Mount: mount, Skip: DefaultSkip})
}

// FromMap builds an in-memory billy filesystem from path/content pairs. A
// key ending in "/" creates an empty directory.
func FromMap(files map[string]string) (billy.Filesystem, error) {
	mem := memfs.New()
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := vfs.Clean(k)
		if strings.HasSuffix(k, "/") {
			if err := mem.MkdirAll(p, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := util.WriteFile(mem, p, []byte(files[k]), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", p, err)
		}
	}
	return mem, nil
}

// Dump writes the tree under root of src into dst, replacing files that
// already exist there.
func Dump(src *vfs.FS, root string, dst billy.Filesystem) error {
	root = vfs.Clean(root)
	return src.Walk(root, func(p string, info vfs.Info) error {
		rel := vfs.Rel(root, p)
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			return dst.MkdirAll(rel, 0o755)
		}
		data, err := src.ReadFile(p)
		if err != nil {
			return err
		}
		if err := util.WriteFile(dst, rel, data, 0o644); err != nil {
			return fmt.Errorf("dump %s: %w", p, err)
		}
		return nil
	})
}

// DumpDir writes the tree under root of src into a directory on disk.
func DumpDir(src *vfs.FS, root, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return Dump(src, root, osfs.New(dir))
}
