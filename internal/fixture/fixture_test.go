package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/buildverify/internal/clock"
	"github.com/agentic-research/buildverify/internal/vfs"
)

func TestLoadFromMap(t *testing.T) {
	src, err := FromMap(map[string]string{
		"/src/a.ts":      "export const x = 1;",
		"src/lib/b.ts":   "export const y = 2;",
		"/empty/":        "",
		"/.git/HEAD":     "ref: refs/heads/main",
		"/tsconfig.json": "{}",
	})
	require.NoError(t, err)

	clk := clock.New()
	clk.Tick()
	f := vfs.New(vfs.Options{Clock: clk})
	require.NoError(t, Load(src, f, Options{Skip: DefaultSkip}))

	files, err := f.Files("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a.ts", "/src/lib/b.ts", "/tsconfig.json"}, files)
	assert.True(t, f.Exists("/empty"))
	assert.False(t, f.Exists("/.git"))

	info, err := f.Stat("/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), info.ModTime())
}

func TestLoadAtMount(t *testing.T) {
	src, err := FromMap(map[string]string{"/a.ts": "a"})
	require.NoError(t, err)

	f := vfs.New(vfs.Options{})
	require.NoError(t, Load(src, f, Options{Mount: "/src"}))
	data, err := f.ReadFile("/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.ts"), []byte("x"), 0o644))

	f := vfs.New(vfs.Options{})
	require.NoError(t, LoadDir(dir, f, "/"))
	assert.True(t, f.IsFile("/src/a.ts"))

	assert.Error(t, LoadDir(filepath.Join(dir, "missing"), f, "/"))
}

func TestDumpRoundTrip(t *testing.T) {
	f := vfs.New(vfs.Options{})
	require.NoError(t, f.MkdirAll("/out/nested"))
	require.NoError(t, f.WriteFile("/out/a.js", []byte("a")))
	require.NoError(t, f.WriteFile("/out/nested/b.js", []byte("b")))
	require.NoError(t, f.WriteFile("/src/a.ts", []byte("ignored")))

	mem := memfs.New()
	require.NoError(t, Dump(f, "/out", mem))

	data, err := util.ReadFile(mem, "nested/b.js")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
	_, err = mem.Stat("a.ts")
	assert.Error(t, err)

	back := vfs.New(vfs.Options{})
	require.NoError(t, Load(mem, back, Options{Mount: "/out"}))
	files, err := back.Files("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/a.js", "/out/nested/b.js"}, files)
}

func TestDumpDir(t *testing.T) {
	f := vfs.New(vfs.Options{})
	require.NoError(t, f.WriteFile("/a.txt", []byte("hello")))

	dir := filepath.Join(t.TempDir(), "dump")
	require.NoError(t, DumpDir(f, "/", dir))
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
