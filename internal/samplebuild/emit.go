package samplebuild

import (
	"strings"

	"github.com/agentic-research/buildverify/internal/buildinfo"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// emitted is the JavaScript produced for one source file.
type emitted struct {
	js    string
	lines [][]buildinfo.Segment // mappings, one entry per generated line
}

// emitJS removes every strip span from the source. Newlines inside a
// removed span are kept so generated lines stay aligned with source lines.
func emitJS(f *sourceFile) emitted {
	text := f.text
	var out strings.Builder
	e := &mapper{src: text}

	pos := 0
	for _, s := range sortedSpans(f.strip) {
		if s.end <= pos {
			continue
		}
		if s.start > pos {
			e.keep(&out, pos, s.start)
		}
		from := max(s.start, pos)
		for _, c := range text[from:s.end] {
			if c == '\n' {
				out.WriteByte('\n')
				e.newline()
			}
		}
		pos = s.end
	}
	if pos < len(text) {
		e.keep(&out, pos, len(text))
	}

	js := out.String()
	if js != "" && !strings.HasSuffix(js, "\n") {
		js += "\n"
		e.newline()
	}
	return emitted{js: js, lines: e.finish()}
}

// mapper tracks generated and source positions while text is copied.
type mapper struct {
	src     []byte
	lines   [][]buildinfo.Segment
	genLine int
	genCol  int
}

func (m *mapper) keep(out *strings.Builder, from, to int) {
	if from < to && m.src[from] != '\n' {
		m.mark(from)
	}
	for i := from; i < to; i++ {
		c := m.src[i]
		out.WriteByte(c)
		if c == '\n' {
			m.newline()
			if i+1 < to && m.src[i+1] != '\n' {
				m.mark(i + 1)
			}
			continue
		}
		m.genCol++
	}
}

func (m *mapper) newline() {
	m.genLine++
	m.genCol = 0
}

// mark maps the current generated position to source offset off.
func (m *mapper) mark(off int) {
	line, col := 0, 0
	for _, c := range m.src[:off] {
		if c == '\n' {
			line++
			col = 0
			continue
		}
		col++
	}
	for len(m.lines) <= m.genLine {
		m.lines = append(m.lines, nil)
	}
	m.lines[m.genLine] = append(m.lines[m.genLine], buildinfo.Segment{
		GenColumn:    m.genCol,
		HasSource:    true,
		Source:       0,
		SourceLine:   line,
		SourceColumn: col,
	})
}

func (m *mapper) finish() [][]buildinfo.Segment {
	for len(m.lines) < m.genLine {
		m.lines = append(m.lines, nil)
	}
	return m.lines
}

// sourceMap builds the map written next to jsPath for src.
func sourceMap(jsPath, src string, e emitted) *buildinfo.SourceMap {
	return &buildinfo.SourceMap{
		Version:  3,
		File:     vfs.Base(jsPath),
		Sources:  []string{vfs.Rel(vfs.Dir(jsPath), src)},
		Names:    []string{},
		Mappings: buildinfo.EncodeMappings(e.lines),
	}
}

// withMapURL appends the sourceMappingURL comment for mapPath.
func withMapURL(js, mapPath string) string {
	return js + "//# sourceMappingURL=" + vfs.Base(mapPath) + "\n"
}
