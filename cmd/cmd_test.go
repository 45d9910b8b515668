package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suiteSrc = `
baselines = "baselines"

fixture "basic" {
  file "/tsconfig.json" {
    content = <<EOT
{"compilerOptions": {"rootDir": "./src", "outDir": "./out", "declaration": true}, "files": ["src/a.ts"]}
EOT
  }
  file "/src/a.ts" {
    content = "export const x = 1;"
  }
}

scenario "comment only" {
  tool        = "samplebuild"
  project     = "basic"
  fixture     = "basic"
  roots       = ["/tsconfig.json"]
  source_root = "/src"
  outputs     = ["/out/a.js", "/out/a.d.ts"]
  build_info  = "/out/tsconfig.tsbuildinfo"

  phase "initial" {
    expect {
      reads = { "/src/a.ts" = 1 }
    }
  }

  phase "incremental, comment-only edit" {
    edit "replace" {
      path = "/src/a.ts"
      old  = "x = 1"
      text = "x = 1 // comment"
    }
    expect {
      reads       = { "/src/a.ts" = 1 }
      unchanged   = ["/out/a.d.ts"]
      regenerated = ["/out/a.js"]
    }
  }
}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	before := filepath.Join(dir, "before")
	after := filepath.Join(dir, "after")
	writeFile(t, filepath.Join(before, "a.txt"), "one\n")
	writeFile(t, filepath.Join(before, "gone.txt"), "bye\n")
	writeFile(t, filepath.Join(after, "a.txt"), "two\n")

	out, err := execute(t, "diff", "--no-color", before, after)
	require.NoError(t, err)
	assert.Contains(t, out, "//// [/a.txt] *modified*")
	assert.Contains(t, out, "-one")
	assert.Contains(t, out, "+two")
	assert.Contains(t, out, "//// [/gone.txt] *deleted*")
}

func TestDiffCommandIdenticalTrees(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "x.txt"), "same\n")
	writeFile(t, filepath.Join(dir, "b", "x.txt"), "same\n")

	out, err := execute(t, "diff", "--no-color", filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	require.NoError(t, err)
	assert.Equal(t, "No changes\n", out)
}

func TestRunAndReportCommands(t *testing.T) {
	dir := t.TempDir()
	suite := filepath.Join(dir, "suite.hcl")
	db := filepath.Join(dir, "runs.db")
	writeFile(t, suite, suiteSrc)

	out, err := execute(t, "run", "--no-color", "--journal", db, suite)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS comment only (2 phases)")

	entries, err := os.ReadDir(filepath.Join(dir, "baselines"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	// Baselines written by the first run are checked by the second.
	out, err = execute(t, "run", "--no-color", "--journal", db, suite)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS comment only")

	out, err = execute(t, "report", "--no-color", db)
	require.NoError(t, err)
	assert.Contains(t, out, "comment only")
	assert.Contains(t, out, "phases=2 mismatches=0")
}

func TestRenderCommandPrintsRecord(t *testing.T) {
	dir := t.TempDir()
	info := filepath.Join(dir, "tsconfig.tsbuildinfo")
	writeFile(t, info, `{"version": "1", "program": {"files": {"/src/a.ts": {"version": "abc"}}}}`)

	out, err := execute(t, "render", "--no-color", info)
	require.NoError(t, err)
	assert.Contains(t, out, `"/src/a.ts"`)
	assert.Contains(t, out, "abc")
}

func TestRenderCommandRejectsMalformedRecord(t *testing.T) {
	dir := t.TempDir()
	info := filepath.Join(dir, "bad.tsbuildinfo")
	writeFile(t, info, `{"program": {}}`)

	_, err := execute(t, "render", "--no-color", info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.tsbuildinfo")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "--no-color", "diff", t.TempDir(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
	_, err = execute(t, "--log-level", "warn", "--no-color", "diff", t.TempDir(), t.TempDir())
	require.NoError(t, err)
}

const failingSuite = `
fixture "basic" {
  file "/tsconfig.json" {
    content = <<EOT
{"compilerOptions": {"rootDir": "./src", "outDir": "./out"}, "files": ["src/a.ts"]}
EOT
  }
  file "/src/a.ts" {
    content = "export const x = 1;"
  }
}

scenario "over reads" {
  fixture     = "basic"
  roots       = ["/tsconfig.json"]
  source_root = "/src"

  phase "initial" {
    expect {
      reads = { "/src/a.ts" = 2 }
    }
  }

  phase "no change" {
    expect {
      reads = {}
    }
  }
}
`

func TestRunDumpsFailedPhases(t *testing.T) {
	dir := t.TempDir()
	suite := filepath.Join(dir, "suite.hcl")
	dump := filepath.Join(dir, "failed")
	writeFile(t, suite, failingSuite)

	out, err := execute(t, "run", "--no-color", "--journal", "", "--dump-failed", dump, suite)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL over reads")
	assert.Contains(t, out, "dumped over reads/initial")

	js, err := os.ReadFile(filepath.Join(dump, "over-reads", "initial", "out", "a.js"))
	require.NoError(t, err)
	assert.Equal(t, "export const x = 1;\n", string(js))
	_, err = os.Stat(filepath.Join(dump, "over-reads", "initial", "src", "a.ts"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dump, "over-reads", "no-change"))
	assert.True(t, os.IsNotExist(err), "passing phases are not dumped")
}
