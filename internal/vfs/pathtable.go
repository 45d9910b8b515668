package vfs

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// pathTable interns paths to dense uint32 IDs. One table is shared by every
// snapshot of a lineage so their change bitmaps are comparable.
type pathTable struct {
	mu    sync.RWMutex
	ids   map[string]uint32
	paths []string
}

func newPathTable() *pathTable {
	return &pathTable{ids: make(map[string]uint32)}
}

func (t *pathTable) intern(p string) uint32 {
	t.mu.RLock()
	id, ok := t.ids[p]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[p]; ok {
		return id
	}
	id = uint32(len(t.paths))
	t.paths = append(t.paths, p)
	t.ids[p] = id
	return id
}

func (t *pathTable) lookup(p string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[p]
	return id, ok
}

func (t *pathTable) resolve(bm *roaring.Bitmap) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, t.paths[it.Next()])
	}
	sort.Strings(out)
	return out
}
