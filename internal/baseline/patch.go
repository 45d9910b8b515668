// Package baseline renders build state as deterministic text and keeps the
// rendered baselines on disk for review.
package baseline

import (
	"fmt"
	"strings"
	"time"

	"github.com/aymanbagabas/go-udiff"

	"github.com/agentic-research/buildverify/internal/vfs"
)

// NoChanges is the whole baseline of an empty patch.
const NoChanges = "No changes\n"

// RenderPatch renders one block per change, in patch order. Modified files
// are shown as a unified diff; new files are shown in full.
func RenderPatch(p vfs.Patch) string {
	if p.Empty() {
		return NoChanges
	}
	var b strings.Builder
	for i, c := range p {
		if i > 0 {
			b.WriteByte('\n')
		}
		renderChange(&b, c)
	}
	return b.String()
}

func renderChange(b *strings.Builder, c vfs.Change) {
	switch {
	case c.Dir && c.Kind == vfs.Added:
		fmt.Fprintf(b, "//// [%s] *new* directory\n", c.Path)
	case c.Dir:
		fmt.Fprintf(b, "//// [%s] *deleted* directory\n", c.Path)
	case c.Kind == vfs.Added:
		fmt.Fprintf(b, "//// [%s] *new* %s\n", c.Path, stamp(c.NewTime))
		b.WriteString(withNewline(string(c.New)))
	case c.Kind == vfs.Removed:
		fmt.Fprintf(b, "//// [%s] *deleted*\n", c.Path)
	case !c.ContentChanged():
		fmt.Fprintf(b, "//// [%s] *mtime changed* %s -> %s\n", c.Path, stamp(c.OldTime), stamp(c.NewTime))
	default:
		fmt.Fprintf(b, "//// [%s] *modified* %s\n", c.Path, stamp(c.NewTime))
		b.WriteString(UnifiedDiff(c.Path, string(c.Old), string(c.New)))
	}
}

// UnifiedDiff returns a unified diff between two versions of one file,
// always ending in a newline. Equal inputs give an empty string.
func UnifiedDiff(name, from, to string) string {
	if from == to {
		return ""
	}
	return withNewline(udiff.Unified(name, name, withNewline(from), withNewline(to)))
}

// stamp renders a logical timestamp.
func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
