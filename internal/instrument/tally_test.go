package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/buildverify/internal/vfs"
)

func TestRecorder_OnlyUnderSourceRoot(t *testing.T) {
	rec := NewRecorder("/src", false)
	rec.Record("/src/a.ts")
	rec.Record("src//a.ts")
	rec.Record("/lib/lib.d.ts")
	rec.Record("/srcfoo/b.ts")
	rec.Record("/SRC/c.ts")

	assert.Equal(t, Tally{"/src/a.ts": 2}, rec.Tally())
}

func TestRecorder_IgnoreCase(t *testing.T) {
	rec := NewRecorder("/src", true)
	rec.Record("/SRC/c.ts")
	rec.Record("/src/C.ts")
	rec.Record("/src/c.ts")
	assert.Equal(t, Tally{"/src/c.ts": 3}, rec.Tally())
}

func TestTally_Fold(t *testing.T) {
	folded := Tally{"/SRC/A.ts": 1, "/src/a.ts": 2, "/src/b.ts": 1}.Fold()
	assert.Equal(t, Tally{"/src/a.ts": 3, "/src/b.ts": 1}, folded)
	assert.Empty(t, folded.Compare(Tally{"/src/a.ts": 3, "/src/b.ts": 1}))
}

func TestRecorder_Reset(t *testing.T) {
	rec := NewRecorder("/src", false)
	rec.Record("/src/a.ts")
	snapshot := rec.Tally()

	rec.Reset()
	assert.Empty(t, rec.Tally())
	assert.Equal(t, 1, snapshot.Count("/src/a.ts"), "earlier copies are unaffected")
}

func TestTally_CompareAbsentEqualsZero(t *testing.T) {
	actual := Tally{"/src/a.ts": 1, "/src/b.ts": 2}
	expected := Tally{"/src/a.ts": 1, "/src/b.ts": 1, "/src/c.ts": 0}

	diffs := actual.Compare(expected)
	require.Len(t, diffs, 1)
	assert.Equal(t, Difference{Path: "/src/b.ts", Expected: 1, Actual: 2}, diffs[0])
	assert.Equal(t, "/src/b.ts: expected 1 reads, got 2", diffs[0].String())

	assert.Empty(t, Tally{}.Compare(Tally{"/src/x.ts": 0}))
}

func TestTally_CompareSorted(t *testing.T) {
	diffs := Tally{"/src/z.ts": 1, "/src/a.ts": 1}.Compare(Tally{"/src/m.ts": 1})
	var paths []string
	for _, d := range diffs {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"/src/a.ts", "/src/m.ts", "/src/z.ts"}, paths)
}

func TestTally_Exceeding(t *testing.T) {
	prev := Tally{"/src/a.ts": 1, "/src/b.ts": 1}
	cur := Tally{"/src/a.ts": 2, "/src/b.ts": 1, "/src/c.ts": 1}

	assert.Equal(t, []Difference{
		{Path: "/src/a.ts", Expected: 1, Actual: 2},
		{Path: "/src/c.ts", Expected: 0, Actual: 1},
	}, cur.Exceeding(prev, nil))

	onlyA := func(p string) bool { return p == "/src/a.ts" }
	assert.Len(t, cur.Exceeding(prev, onlyA), 1)
}

func TestTally_String(t *testing.T) {
	assert.Equal(t, `{"/src/a.ts": 1, "/src/b.ts": 3}`, Tally{"/src/b.ts": 3, "/src/a.ts": 1}.String())
	assert.Equal(t, 4, Tally{"/src/b.ts": 3, "/src/a.ts": 1}.Total())
}

func TestWrap_RecordsEveryReadAttempt(t *testing.T) {
	f := vfs.New(vfs.Options{})
	require.NoError(t, f.MkdirAll("/src"))
	require.NoError(t, f.MkdirAll("/lib"))
	require.NoError(t, f.WriteFile("/src/a.ts", []byte("export const x = 1;")))
	require.NoError(t, f.WriteFile("/lib/lib.d.ts", []byte("")))

	rec := NewRecorder("/src", false)
	host := Wrap(NewHost(f, nil), rec)

	_, err := host.ReadFile("/src/a.ts")
	require.NoError(t, err)
	_, err = host.ReadFile("/lib/lib.d.ts")
	require.NoError(t, err)
	_, err = host.ReadFile("/src/missing.ts")
	require.Error(t, err)

	assert.True(t, host.FileExists("/src/a.ts"))
	assert.False(t, host.FileExists("/src"))
	_, err = host.Stat("/src/a.ts")
	require.NoError(t, err)

	assert.Equal(t, Tally{"/src/a.ts": 1, "/src/missing.ts": 1}, rec.Tally())
}

func TestWrap_CountsRepeatedMissingReads(t *testing.T) {
	f := vfs.New(vfs.Options{})
	require.NoError(t, f.MkdirAll("/src"))

	rec := NewRecorder("/src", false)
	host := Wrap(NewHost(f, nil), rec)
	for i := 0; i < 3; i++ {
		_, err := host.ReadFile("/src/missing.ts")
		assert.ErrorIs(t, err, vfs.ErrNotFound)
	}
	_, err := host.ReadFile("/out/missing.js")
	require.Error(t, err)

	assert.Equal(t, Tally{"/src/missing.ts": 3}, rec.Tally())
}

func TestHost_PassesThrough(t *testing.T) {
	f := vfs.New(vfs.Options{})
	host := NewHost(f, nil)

	require.NoError(t, host.MkdirAll("/out"))
	require.NoError(t, host.WriteFile("/out/a.js", []byte("js")))
	require.NoError(t, host.Touch("/out/a.js", host.Now().Add(1)))

	info, err := host.Stat("/out/a.js")
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(host.Now()))

	require.NoError(t, host.Remove("/out"))
	_, err = host.Stat("/out/a.js")
	assert.ErrorIs(t, err, vfs.ErrNotFound)
}
