package samplebuild

import (
	"strings"

	"github.com/agentic-research/buildverify/internal/buildinfo"
)

const strictPrologue = `"use strict";`

// bundleWriter concatenates outFile content and records its sections.
type bundleWriter struct {
	b        strings.Builder
	sections []buildinfo.Section
}

func (w *bundleWriter) prologue() {
	w.add(buildinfo.KindPrologue, strictPrologue)
	w.b.WriteByte('\n')
}

func (w *bundleWriter) add(kind buildinfo.SectionKind, text string) {
	if text == "" {
		return
	}
	pos := w.b.Len()
	w.b.WriteString(text)
	w.sections = append(w.sections, buildinfo.Section{Kind: kind, Pos: pos, End: w.b.Len()})
}

// prepend copies an upstream bundle without its prologue. The upstream
// text sections are rebased into this bundle; an upstream without a usable
// bundle record becomes a single text.
func (w *bundleWriter) prepend(data string, content []byte, upstream *buildinfo.Bundle) {
	texts := upstreamTexts(upstream, len(content))
	if len(texts) == 0 {
		start := 0
		if upstream == nil && strings.HasPrefix(string(content), strictPrologue) {
			start = len(strictPrologue)
			for start < len(content) && content[start] == '\n' {
				start++
			}
		}
		if start == len(content) {
			return
		}
		texts = []buildinfo.Section{{Kind: buildinfo.KindText, Pos: start, End: len(content)}}
	}

	skip := texts[0].Pos
	base := w.b.Len()
	w.b.Write(content[skip:])
	for i := range texts {
		texts[i].Pos += base - skip
		texts[i].End += base - skip
	}
	w.sections = append(w.sections, buildinfo.NewPrepend(data, texts...))
}

// upstreamTexts flattens the text sections of b, or returns nil when any
// of them falls outside content.
func upstreamTexts(b *buildinfo.Bundle, size int) []buildinfo.Section {
	if b == nil {
		return nil
	}
	var out []buildinfo.Section
	for _, s := range b.Sections {
		switch {
		case s.IsPrepend():
			out = append(out, s.Texts...)
		case s.Kind == buildinfo.KindText:
			out = append(out, s)
		}
	}
	for _, t := range out {
		if t.End > size {
			return nil
		}
	}
	return out
}

func (w *bundleWriter) String() string { return w.b.String() }

func (w *bundleWriter) bundle() *buildinfo.Bundle {
	return &buildinfo.Bundle{Sections: w.sections}
}
