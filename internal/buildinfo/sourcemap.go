package buildinfo

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// SourceMap is a version 3 source map.
type SourceMap struct {
	Version    int
	File       string
	SourceRoot string
	Sources    []string
	Names      []string
	Mappings   string
}

// Segment is one decoded mapping with absolute positions. Source fields are
// meaningful only when HasSource is set, Name only when HasName is set.
type Segment struct {
	GenColumn    int
	Source       int
	SourceLine   int
	SourceColumn int
	Name         int
	HasSource    bool
	HasName      bool
}

// ParseSourceMap decodes and validates a source map.
func ParseSourceMap(data []byte) (*SourceMap, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, malformed("$", "invalid json: %v", err)
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, malformed("$", "source map is not an object")
	}

	sm := &SourceMap{}
	if sm.Version, err = intField(obj, "$", "version"); err != nil {
		return nil, err
	}
	if sm.Version != 3 {
		return nil, malformed("$.version", "unsupported version %d", sm.Version)
	}
	if sm.File, err = stringField(obj, "$", "file", false); err != nil {
		return nil, err
	}
	if sm.SourceRoot, err = stringField(obj, "$", "sourceRoot", false); err != nil {
		return nil, err
	}
	if sm.Mappings, err = stringField(obj, "$", "mappings", true); err != nil {
		return nil, err
	}
	raw, ok := obj["sources"]
	if !ok {
		return nil, malformed("$.sources", "missing")
	}
	if sm.Sources, err = stringList("$.sources", raw); err != nil {
		return nil, err
	}
	if raw, ok := obj["names"]; ok {
		if sm.Names, err = stringList("$.names", raw); err != nil {
			return nil, err
		}
	}

	lines, err := DecodeMappings(sm.Mappings)
	if err != nil {
		return nil, err
	}
	for l, segs := range lines {
		for _, s := range segs {
			if s.HasSource && (s.Source < 0 || s.Source >= len(sm.Sources)) {
				return nil, malformed("$.mappings", "line %d: source index %d out of range", l+1, s.Source)
			}
			if s.HasName && (s.Name < 0 || s.Name >= len(sm.Names)) {
				return nil, malformed("$.mappings", "line %d: name index %d out of range", l+1, s.Name)
			}
		}
	}
	return sm, nil
}

// Lines decodes the mappings, one slice of segments per generated line.
func (sm *SourceMap) Lines() ([][]Segment, error) {
	return DecodeMappings(sm.Mappings)
}

// Marshal encodes the source map with sorted keys.
func (sm *SourceMap) Marshal() []byte {
	root := map[string]any{
		"version":  int64(sm.Version),
		"sources":  anyList(sm.Sources),
		"names":    anyList(sm.Names),
		"mappings": sm.Mappings,
	}
	if sm.File != "" {
		root["file"] = sm.File
	}
	if sm.SourceRoot != "" {
		root["sourceRoot"] = sm.SourceRoot
	}
	return []byte(oj.JSON(root, &ojg.Options{Sort: true}))
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// DecodeMappings decodes a VLQ mappings string into absolute segments.
func DecodeMappings(mappings string) ([][]Segment, error) {
	var (
		lines                       [][]Segment
		source, srcLine, srcCol, nm int
	)
	for li, line := range strings.Split(mappings, ";") {
		var segs []Segment
		genCol := 0
		if line != "" {
			for si, field := range strings.Split(line, ",") {
				vals, err := decodeVLQ(field)
				if err != nil {
					return nil, malformed("$.mappings", "line %d segment %d: %v", li+1, si+1, err)
				}
				if n := len(vals); n != 1 && n != 4 && n != 5 {
					return nil, malformed("$.mappings", "line %d segment %d: %d fields", li+1, si+1, n)
				}
				genCol += vals[0]
				seg := Segment{GenColumn: genCol}
				if len(vals) >= 4 {
					source += vals[1]
					srcLine += vals[2]
					srcCol += vals[3]
					seg.HasSource = true
					seg.Source, seg.SourceLine, seg.SourceColumn = source, srcLine, srcCol
				}
				if len(vals) == 5 {
					nm += vals[4]
					seg.HasName, seg.Name = true, nm
				}
				segs = append(segs, seg)
			}
		}
		lines = append(lines, segs)
	}
	return lines, nil
}

// EncodeMappings is the inverse of DecodeMappings.
func EncodeMappings(lines [][]Segment) string {
	var (
		b                           strings.Builder
		source, srcLine, srcCol, nm int
	)
	for li, segs := range lines {
		if li > 0 {
			b.WriteByte(';')
		}
		genCol := 0
		for si, s := range segs {
			if si > 0 {
				b.WriteByte(',')
			}
			encodeVLQ(&b, s.GenColumn-genCol)
			genCol = s.GenColumn
			if !s.HasSource {
				continue
			}
			encodeVLQ(&b, s.Source-source)
			encodeVLQ(&b, s.SourceLine-srcLine)
			encodeVLQ(&b, s.SourceColumn-srcCol)
			source, srcLine, srcCol = s.Source, s.SourceLine, s.SourceColumn
			if s.HasName {
				encodeVLQ(&b, s.Name-nm)
				nm = s.Name
			}
		}
	}
	return b.String()
}

func decodeVLQ(field string) ([]int, error) {
	var (
		out   []int
		value int
		shift uint
	)
	for i := 0; i < len(field); i++ {
		digit := strings.IndexByte(base64Chars, field[i])
		if digit < 0 {
			return nil, fmt.Errorf("invalid base64 character %q", field[i])
		}
		value += (digit & 0x1f) << shift
		if digit&0x20 != 0 {
			shift += 5
			continue
		}
		if value&1 != 0 {
			out = append(out, -(value >> 1))
		} else {
			out = append(out, value>>1)
		}
		value, shift = 0, 0
	}
	if shift != 0 {
		return nil, fmt.Errorf("truncated value")
	}
	return out, nil
}

func encodeVLQ(b *strings.Builder, n int) {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		b.WriteByte(base64Chars[digit])
		if v == 0 {
			return
		}
	}
}
