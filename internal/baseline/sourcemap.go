package baseline

import (
	"fmt"
	"strings"

	"github.com/agentic-research/buildverify/internal/buildinfo"
)

// RenderSourceMap dumps a source map: its header fields, then every
// generated line with its decoded segments. When generated is non-empty
// each line is preceded by the generated text it maps.
func RenderSourceMap(name string, sm *buildinfo.SourceMap, generated string) (string, error) {
	lines, err := sm.Lines()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(sectionRule + "\n")
	fmt.Fprintf(&b, "SourceMap:: %s\n", name)
	fmt.Fprintf(&b, "file: %s\n", sm.File)
	fmt.Fprintf(&b, "sourceRoot: %s\n", sm.SourceRoot)
	fmt.Fprintf(&b, "sources: %s\n", strings.Join(sm.Sources, ","))
	fmt.Fprintf(&b, "names: %s\n", strings.Join(sm.Names, ","))
	b.WriteString(sectionRule + "\n")

	var genLines []string
	if generated != "" {
		genLines = strings.Split(strings.TrimSuffix(generated, "\n"), "\n")
	}
	for i, segs := range lines {
		for _, s := range segs {
			if (s.HasSource && s.Source >= len(sm.Sources)) || (s.HasName && s.Name >= len(sm.Names)) {
				return "", &buildinfo.MalformedError{Field: name + ".mappings", Reason: fmt.Sprintf("line %d: index out of range", i+1)}
			}
		}
		if i < len(genLines) {
			fmt.Fprintf(&b, ">>>%d: %s\n", i+1, genLines[i])
		}
		for _, s := range segs {
			fmt.Fprintf(&b, "  (%d:%d)", i+1, s.GenColumn)
			if s.HasSource {
				// Source lines and columns are zero based in the map.
				fmt.Fprintf(&b, " => %s (%d:%d)", sm.Sources[s.Source], s.SourceLine+1, s.SourceColumn)
			}
			if s.HasName {
				fmt.Fprintf(&b, " name: %s", sm.Names[s.Name])
			}
			b.WriteByte('\n')
		}
	}
	b.WriteString(sectionRule + "\n")
	return b.String(), nil
}
