package vfs

import (
	"io/fs"
	"time"
)

// Info describes a node. It implements fs.FileInfo.
type Info struct {
	path    string
	name    string
	dir     bool
	size    int64
	modTime time.Time
}

func newInfo(p string, n *node) Info {
	name := n.name
	if p == "/" {
		name = "/"
	}
	return Info{
		path:    p,
		name:    name,
		dir:     n.dir,
		size:    int64(len(n.data)),
		modTime: n.modTime,
	}
}

// Path returns the normalised path of the node.
func (i Info) Path() string { return i.path }

func (i Info) Name() string       { return i.name }
func (i Info) Size() int64        { return i.size }
func (i Info) ModTime() time.Time { return i.modTime }
func (i Info) IsDir() bool        { return i.dir }
func (i Info) Sys() any           { return nil }

func (i Info) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

var _ fs.FileInfo = Info{}
