package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/buildverify/internal/clock"
	"github.com/agentic-research/buildverify/internal/vfs"
)

func TestEdit_Apply(t *testing.T) {
	clk := clock.New()
	f := vfs.New(vfs.Options{Clock: clk})
	require.NoError(t, f.MkdirAll("/src"))
	require.NoError(t, f.WriteFile("/src/a.ts", []byte("export const x = 1;")))

	edits := []Edit{
		Replace("/src/a.ts", "x = 1", "x = 2"),
		Prepend("/src/a.ts", "// header\n"),
		Append("/src/a.ts", "\nexport const y = x;"),
		Mkdir("/src/lib/deep"),
		Write("/src/lib/deep/b.ts", "export {};"),
	}
	for _, e := range edits {
		require.NoError(t, e.Apply(f, clk.Now()), e.String())
	}

	data, err := f.ReadFile("/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "// header\nexport const x = 2;\nexport const y = x;", string(data))
	assert.True(t, f.IsFile("/src/lib/deep/b.ts"))

	later := clk.Tick()
	require.NoError(t, Touch("/src/a.ts").Apply(f, later))
	info, err := f.Stat("/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, later, info.ModTime())

	require.NoError(t, Delete("/src/lib").Apply(f, later))
	assert.False(t, f.Exists("/src/lib"))
}

func TestEdit_ReplaceOnlyFirst(t *testing.T) {
	f := vfs.New(vfs.Options{})
	require.NoError(t, f.WriteFile("/a", []byte("x x x")))
	require.NoError(t, Replace("/a", "x", "y").Apply(f, f.Clock().Now()))
	data, _ := f.ReadFile("/a")
	assert.Equal(t, "y x x", string(data))
}

func TestEdit_Errors(t *testing.T) {
	f := vfs.New(vfs.Options{})
	assert.ErrorIs(t, Append("/missing", "x").Apply(f, f.Clock().Now()), vfs.ErrNotFound)
	assert.ErrorIs(t, Write("/no/parent", "x").Apply(f, f.Clock().Now()), vfs.ErrNotFound)
	assert.ErrorIs(t, Touch("/missing").Apply(f, f.Clock().Now()), vfs.ErrNotFound)
}

func TestEdit_Validate(t *testing.T) {
	assert.NoError(t, Write("/a", "").Validate())
	assert.Error(t, Write("", "x").Validate())
	assert.Error(t, Replace("/a", "", "x").Validate())
	assert.Error(t, Edit{Kind: "rename", Path: "/a"}.Validate())
}

func TestEdit_String(t *testing.T) {
	assert.Equal(t, `replace "x = 1" with "x = 1 // comment" in /src/a.ts`, Replace("/src/a.ts", "x = 1", "x = 1 // comment").String())
	assert.Equal(t, "touch /src/a.ts", Touch("/src/a.ts").String())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ticked", Ticked.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestMachine_RejectsIllegalTransition(t *testing.T) {
	m := &machine{}
	m.to("p", Shadowed, clock.Epoch)
	assert.Panics(t, func() { m.to("p", Built, clock.Epoch) })
}
