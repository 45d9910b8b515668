package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecord = `{
  "version": "1",
  "program": {
    "files": {
      "/src/a.ts": {"version": "v1", "signature": "s1", "imports": ["/src/b.ts"]},
      "/src/b.ts": {"version": "v2"}
    },
    "options": {"outFile": "/out/all.js", "declaration": true},
    "diagnostics": [{"file": "/src/a.ts", "template": "Cannot find name '{0}'.", "args": ["y"]}],
    "outputs": {"/out/all.js": "h1", "/out/all.d.ts": "h2"}
  },
  "bundle": {
    "js": {"sections": [
      {"kind": "prologue", "pos": 0, "end": 14, "data": "use strict"},
      {"kind": "prepend", "pos": 15, "end": 40, "data": "/lib/first.js",
       "texts": [{"kind": "text", "pos": 15, "end": 30}, {"kind": "text", "pos": 31, "end": 40}]},
      {"kind": "text", "pos": 41, "end": 60}
    ]}
  }
}`

func TestParse(t *testing.T) {
	info, err := Parse([]byte(sampleRecord))
	require.NoError(t, err)

	assert.Equal(t, "1", info.Version)
	assert.Len(t, info.Files, 2)
	assert.Equal(t, FileState{Version: "v1", Signature: "s1", Imports: []string{"/src/b.ts"}}, info.Files["/src/a.ts"])
	assert.Equal(t, "/out/all.js", info.Options["outFile"])
	assert.Equal(t, "true", info.Options["declaration"])
	assert.Equal(t, []Diagnostic{{File: "/src/a.ts", Template: "Cannot find name '{0}'.", Args: []string{"y"}}}, info.Diagnostics)
	assert.Equal(t, []string{"/out/all.d.ts", "/out/all.js"}, info.OutputPaths())
	assert.Equal(t, "h1", info.Outputs["/out/all.js"])
	assert.Nil(t, info.DTS)

	require.NotNil(t, info.JS)
	require.Len(t, info.JS.Sections, 3)
	prepend := info.JS.Sections[1]
	assert.True(t, prepend.IsPrepend())
	assert.Equal(t, "/lib/first.js", prepend.Data)
	require.Len(t, prepend.Texts, 2)
	assert.Equal(t, 31, prepend.Texts[1].Pos)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"not json", `{`, "$"},
		{"not an object", `[]`, "$"},
		{"missing version", `{"program": {}}`, "$.version"},
		{"output without hash", `{"version": "1", "program": {"outputs": {"/a.js": 1}}}`, "$.program.outputs./a.js"},
		{"file without version", `{"version": "1", "program": {"files": {"/a.ts": {}}}}`, "$.program.files./a.ts.version"},
		{"section without kind", `{"version": "1", "bundle": {"js": {"sections": [{"pos": 0, "end": 1}]}}}`, "$.bundle.js.sections[0].kind"},
		{"fractional pos", `{"version": "1", "bundle": {"js": {"sections": [{"kind": "text", "pos": 0.5, "end": 1}]}}}`, "$.bundle.js.sections[0].pos"},
		{"inverted range", `{"version": "1", "bundle": {"js": {"sections": [{"kind": "text", "pos": 5, "end": 1}]}}}`, "$.bundle.js.sections[0]"},
		{"prepend span too wide", `{"version": "1", "bundle": {"dts": {"sections": [
			{"kind": "prepend", "pos": 0, "end": 20, "data": "/x.d.ts", "texts": [{"kind": "text", "pos": 0, "end": 10}]}]}}}`,
			"$.bundle.dts.sections[0]"},
		{"prepend without texts", `{"version": "1", "bundle": {"js": {"sections": [
			{"kind": "prepend", "pos": 0, "end": 0, "data": "/x.js"}]}}}`, "$.bundle.js.sections[0].texts"},
		{"nested non-text", `{"version": "1", "bundle": {"js": {"sections": [
			{"kind": "prepend", "pos": 0, "end": 5, "data": "/x.js", "texts": [{"kind": "prologue", "pos": 0, "end": 5}]}]}}}`,
			"$.bundle.js.sections[0].texts[0].kind"},
		{"flat with texts", `{"version": "1", "bundle": {"js": {"sections": [
			{"kind": "text", "pos": 0, "end": 5, "texts": [{"kind": "text", "pos": 0, "end": 5}]}]}}}`,
			"$.bundle.js.sections[0].texts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedArtifact)

			var me *MalformedError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestMarshal_RoundTripsAndIsDeterministic(t *testing.T) {
	info := &Info{
		Options: map[string]string{"outFile": "/out/all.js"},
		Files: map[string]FileState{
			"/src/b.ts": {Version: "v2"},
			"/src/a.ts": {Version: "v1", Signature: "s1", Imports: []string{"/src/b.ts"}},
		},
		Outputs: map[string]string{"/out/all.js": "h"},
		JS: &Bundle{Sections: []Section{
			{Kind: KindPrologue, Pos: 0, End: 13},
			NewPrepend("/lib/first.js", Section{Kind: KindText, Pos: 14, End: 20}),
		}},
	}

	first := info.Marshal()
	assert.Equal(t, string(first), string(info.Marshal()))

	back, err := Parse(first)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, back.Version)
	assert.Equal(t, info.Files, back.Files)
	assert.Equal(t, info.JS, back.JS)
	assert.Equal(t, info.Outputs, back.Outputs)
}

func TestNewPrepend(t *testing.T) {
	s := NewPrepend("/x.js",
		Section{Kind: KindText, Pos: 3, End: 7},
		Section{Kind: KindText, Pos: 8, End: 12},
	)
	assert.Equal(t, 3, s.Pos)
	assert.Equal(t, 12, s.End)
	assert.NoError(t, Bundle{Sections: []Section{s}}.Validate("$"))
}
