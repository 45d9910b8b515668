package buildinfo

import "fmt"

// SectionKind names what a bundle section holds.
type SectionKind string

const (
	KindPrologue     SectionKind = "prologue"
	KindEmitHelpers  SectionKind = "emitHelpers"
	KindNoDefaultLib SectionKind = "no-default-lib"
	KindReference    SectionKind = "reference"
	KindType         SectionKind = "type"
	KindLib          SectionKind = "lib"
	KindPrepend      SectionKind = "prepend"
	KindText         SectionKind = "text"
	KindInternal     SectionKind = "internal"
)

// Section is a byte range of a bundled output file. A prepend section
// carries the nested text sections of the prepended output in Texts; every
// other kind is flat.
type Section struct {
	Kind  SectionKind
	Pos   int
	End   int
	Data  string    // optional; the prepended file for prepend sections
	Texts []Section // prepend only
}

// IsPrepend reports whether s is a prepend section.
func (s Section) IsPrepend() bool { return s.Kind == KindPrepend }

// Bundle is the ordered section list of one bundled output file.
type Bundle struct {
	Sections []Section
}

// Validate checks the range invariants of every section. Nested texts of
// a prepend section must be text sections in order, and the prepend range
// must run exactly from the first text's start to the last text's end.
func (b Bundle) Validate(field string) error {
	for i, s := range b.Sections {
		if err := s.validate(fmt.Sprintf("%s[%d]", field, i)); err != nil {
			return err
		}
	}
	return nil
}

func (s Section) validate(field string) error {
	if s.Kind == "" {
		return malformed(field+".kind", "missing section kind")
	}
	if s.Pos < 0 || s.End < s.Pos {
		return malformed(field, "invalid range %d..%d", s.Pos, s.End)
	}
	if !s.IsPrepend() {
		if len(s.Texts) > 0 {
			return malformed(field+".texts", "%s section cannot nest texts", s.Kind)
		}
		return nil
	}

	if s.Data == "" {
		return malformed(field+".data", "prepend section without a source file")
	}
	if len(s.Texts) == 0 {
		return malformed(field+".texts", "prepend section without texts")
	}
	prevEnd := s.Pos
	for i, t := range s.Texts {
		tf := fmt.Sprintf("%s.texts[%d]", field, i)
		if t.Kind != KindText {
			return malformed(tf+".kind", "nested section must be %q, got %q", KindText, t.Kind)
		}
		if err := t.validate(tf); err != nil {
			return err
		}
		if t.Pos < prevEnd {
			return malformed(tf, "text starts at %d before previous end %d", t.Pos, prevEnd)
		}
		prevEnd = t.End
	}
	first, last := s.Texts[0], s.Texts[len(s.Texts)-1]
	if s.Pos != first.Pos || s.End != last.End {
		return malformed(field, "prepend range %d..%d does not span its texts %d..%d",
			s.Pos, s.End, first.Pos, last.End)
	}
	return nil
}

// NewPrepend returns a prepend section spanning texts.
func NewPrepend(data string, texts ...Section) Section {
	s := Section{Kind: KindPrepend, Data: data, Texts: texts}
	if len(texts) > 0 {
		s.Pos, s.End = texts[0].Pos, texts[len(texts)-1].End
	}
	return s
}
