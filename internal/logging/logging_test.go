package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_ConsoleSplitsByLevel(t *testing.T) {
	t.Cleanup(func() { Init(Options{Stdout: discard{}, Stderr: discard{}}) })

	var out, errOut bytes.Buffer
	Init(Options{Level: slog.LevelInfo, Stdout: &out, Stderr: &errOut})

	log := Sub("runner")
	log.Debug("hidden")
	log.Info("phase passed", "phase", "initial")
	log.Warn("phase failed", "phase", "incremental")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "phase passed")
	assert.Contains(t, out.String(), "comp=runner")
	assert.NotContains(t, out.String(), "phase failed")
	assert.Contains(t, errOut.String(), "phase failed")
	assert.False(t, Enabled(slog.LevelDebug))
}

func TestInit_ConsoleHonoursErrorLevel(t *testing.T) {
	t.Cleanup(func() { Init(Options{Stdout: discard{}, Stderr: discard{}}) })

	var out, errOut bytes.Buffer
	Init(Options{Level: slog.LevelError, Stdout: &out, Stderr: &errOut})

	Logger().Warn("baseline written")
	assert.Empty(t, errOut.String())
	assert.False(t, Enabled(slog.LevelWarn))

	Logger().Error("scenario aborted")
	assert.Contains(t, errOut.String(), "scenario aborted")
	assert.NotContains(t, errOut.String(), "baseline written")
	assert.Empty(t, out.String())
}

func TestInit_Files(t *testing.T) {
	t.Cleanup(func() { Init(Options{Stdout: discard{}, Stderr: discard{}}) })

	dir := t.TempDir()
	Init(Options{Level: slog.LevelWarn, Dir: dir, Stdout: discard{}, Stderr: discard{}})
	Logger().Info("to file")
	Logger().Debug("to debug file")

	data, err := os.ReadFile(filepath.Join(dir, "buildverify.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")

	debug, err := os.ReadFile(filepath.Join(dir, "buildverify_debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(debug), "to debug file")
	assert.NotContains(t, string(debug), "to file")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
