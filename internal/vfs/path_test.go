package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := map[string]string{
		"":              "/",
		"/":             "/",
		"src/a.ts":      "/src/a.ts",
		"/src//a.ts":    "/src/a.ts",
		"/src/./b/../a": "/src/a",
		`src\lib\b.ts`:  "/src/lib/b.ts",
		"/../..":        "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, Clean(in), "Clean(%q)", in)
	}
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("/src/a.ts", "/src", false))
	assert.True(t, HasPrefix("/src", "/src", false))
	assert.False(t, HasPrefix("/srcfoo/a.ts", "/src", false))
	assert.False(t, HasPrefix("/SRC/a.ts", "/src", false))
	assert.True(t, HasPrefix("/SRC/a.ts", "/src", true))
	assert.True(t, HasPrefix("/anything", "/", false))
}

func TestRel(t *testing.T) {
	assert.Equal(t, "a.ts", Rel("/src", "/src/a.ts"))
	assert.Equal(t, "../src/a.ts", Rel("/out", "/src/a.ts"))
	assert.Equal(t, ".", Rel("/src", "/src"))
}
