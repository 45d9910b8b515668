package vfs

import (
	"maps"
	"sync/atomic"
	"time"
)

// node is one entry of the persistent tree. A node is only mutated in place
// by the snapshot whose generation matches gen; everyone else clones it.
type node struct {
	name     string
	dir      bool
	data     []byte
	modTime  time.Time
	children map[string]*node // keyed by fold(name)
	gen      uint64
}

var generations atomic.Uint64

func nextGen() uint64 {
	return generations.Add(1)
}

func newDir(name string, t time.Time, gen uint64) *node {
	return &node{name: name, dir: true, modTime: t, children: map[string]*node{}, gen: gen}
}

func newFile(name string, data []byte, t time.Time, gen uint64) *node {
	return &node{name: name, data: data, modTime: t, gen: gen}
}

// clone returns a shallow copy owned by gen. Children are shared; file data
// is never mutated in place, so it is shared too.
func (n *node) clone(gen uint64) *node {
	c := *n
	c.gen = gen
	if n.dir {
		c.children = maps.Clone(n.children)
	}
	return &c
}
