package baseline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/buildverify/internal/buildinfo"
)

func TestRenderBundle(t *testing.T) {
	content := "\"use strict\";\nvar first = 1;\nvar second = 2;\nvar own = 3;\n"
	bundle := &buildinfo.Bundle{Sections: []buildinfo.Section{
		{Kind: buildinfo.KindPrologue, Pos: 0, End: 13, Data: "use strict"},
		buildinfo.NewPrepend("/lib/first.js",
			buildinfo.Section{Kind: buildinfo.KindText, Pos: 14, End: 28},
			buildinfo.Section{Kind: buildinfo.KindText, Pos: 29, End: 44},
		),
		{Kind: buildinfo.KindText, Pos: 45, End: 57},
	}}
	require.NoError(t, bundle.Validate("$"))

	got, err := RenderBundle("/out/all.js", bundle, content)
	require.NoError(t, err)

	want := strings.Join([]string{
		sectionRule,
		"File:: /out/all.js",
		headerRule,
		"prologue: (0-13):: use strict",
		`"use strict";`,
		headerRule,
		"prepend: (14-44):: /lib/first.js texts:: 2",
		textRule,
		">>text: (14-28)",
		">>var first = 1;",
		textRule,
		">>text: (29-44)",
		">>var second = 2;",
		textRule,
		headerRule,
		"text: (45-57)",
		"var own = 3;",
		sectionRule,
	}, "\n") + "\n"
	assert.Equal(t, want, got)
}

func TestRenderBundle_OutOfRange(t *testing.T) {
	bundle := &buildinfo.Bundle{Sections: []buildinfo.Section{{Kind: buildinfo.KindText, Pos: 0, End: 100}}}
	_, err := RenderBundle("/out/all.js", bundle, "short")
	assert.ErrorIs(t, err, buildinfo.ErrMalformedArtifact)
}

func TestRenderBundle_Empty(t *testing.T) {
	got, err := RenderBundle("/out/all.d.ts", nil, "")
	require.NoError(t, err)
	assert.Equal(t, sectionRule+"\nFile:: /out/all.d.ts\n"+sectionRule+"\n", got)
}

func TestRenderSourceMap(t *testing.T) {
	sm := &buildinfo.SourceMap{
		Version:  3,
		File:     "a.js",
		Sources:  []string{"../src/a.ts"},
		Names:    []string{"x"},
		Mappings: "AAAA,aAAaA",
	}
	got, err := RenderSourceMap("/out/a.js.map", sm, "export const x = 1;\n")
	require.NoError(t, err)

	want := strings.Join([]string{
		sectionRule,
		"SourceMap:: /out/a.js.map",
		"file: a.js",
		"sourceRoot: ",
		"sources: ../src/a.ts",
		"names: x",
		sectionRule,
		">>>1: export const x = 1;",
		"  (1:0) => ../src/a.ts (1:0)",
		"  (1:13) => ../src/a.ts (1:13) name: x",
		sectionRule,
	}, "\n") + "\n"
	assert.Equal(t, want, got)
}
