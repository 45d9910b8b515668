// Package instrument counts the reads a build makes under its source root.
package instrument

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/agentic-research/buildverify/internal/vfs"
)

// Tally maps a path to the number of times it was read. A path that is
// absent was read zero times.
type Tally map[string]int

// Count returns the reads recorded for path.
func (t Tally) Count(path string) int {
	return t[vfs.Clean(path)]
}

// Paths returns the tallied paths, sorted.
func (t Tally) Paths() []string {
	keys := lo.Keys(t)
	sort.Strings(keys)
	return keys
}

// Total returns the sum of every count.
func (t Tally) Total() int {
	return lo.Sum(lo.Values(t))
}

// Fold returns a copy keyed by lower-cased paths, summing counts of paths
// that differ only in case.
func (t Tally) Fold() Tally {
	out := make(Tally, len(t))
	for p, n := range t {
		out[strings.ToLower(vfs.Clean(p))] += n
	}
	return out
}

func (t Tally) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range t.Paths() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %d", p, t[p])
	}
	b.WriteByte('}')
	return b.String()
}

// Difference is one path whose read count differs from what was expected.
type Difference struct {
	Path     string
	Expected int
	Actual   int
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: expected %d reads, got %d", d.Path, d.Expected, d.Actual)
}

// Compare returns every path whose count in t differs from expected, sorted
// by path. Absent and zero are the same.
func (t Tally) Compare(expected Tally) []Difference {
	var out []Difference
	for _, p := range union(t, expected) {
		if got, want := t[p], expected[p]; got != want {
			out = append(out, Difference{Path: p, Expected: want, Actual: got})
		}
	}
	return out
}

// Exceeding returns every path in t read more often than in previous,
// sorted by path. keep filters which paths are considered; nil keeps all.
func (t Tally) Exceeding(previous Tally, keep func(path string) bool) []Difference {
	var out []Difference
	for _, p := range t.Paths() {
		if keep != nil && !keep(p) {
			continue
		}
		if got, prev := t[p], previous[p]; got > prev {
			out = append(out, Difference{Path: p, Expected: prev, Actual: got})
		}
	}
	return out
}

func union(a, b Tally) []string {
	keys := lo.Union(lo.Keys(a), lo.Keys(b))
	sort.Strings(keys)
	return keys
}

// Recorder collects a Tally for one build invocation.
type Recorder struct {
	sourceRoot string
	ignoreCase bool

	mu    sync.Mutex
	tally Tally
}

// NewRecorder returns a recorder tallying reads under sourceRoot.
func NewRecorder(sourceRoot string, ignoreCase bool) *Recorder {
	return &Recorder{
		sourceRoot: vfs.Clean(sourceRoot),
		ignoreCase: ignoreCase,
		tally:      Tally{},
	}
}

// SourceRoot returns the root under which reads are tallied.
func (r *Recorder) SourceRoot() string { return r.sourceRoot }

// Record counts one read of path if it lies under the source root. On a
// case-insensitive filesystem the key is folded to lower case, so every
// spelling of a path lands on one entry.
func (r *Recorder) Record(path string) {
	path = vfs.Clean(path)
	if !vfs.HasPrefix(path, r.sourceRoot, r.ignoreCase) {
		return
	}
	if r.ignoreCase {
		path = strings.ToLower(path)
	}
	r.mu.Lock()
	r.tally[path]++
	r.mu.Unlock()
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.tally = Tally{}
	r.mu.Unlock()
}

// Tally returns a copy of the current counts.
func (r *Recorder) Tally() Tally {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Tally, len(r.tally))
	for k, v := range r.tally {
		out[k] = v
	}
	return out
}
