package scenario

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/buildverify/api"
	"github.com/agentic-research/buildverify/internal/baseline"
	"github.com/agentic-research/buildverify/internal/clock"
	"github.com/agentic-research/buildverify/internal/instrument"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// copyBuilder treats every root as a source file and copies it to
// /out/<name>.js, rewriting an output only when its content changes.
type copyBuilder struct {
	calls int
	// extra adds reads of a path on a given call.
	extra map[int]map[string]int
	// nondeterministic stamps the call number into every output.
	nondeterministic bool
	// backdate resets the timestamp of every written output.
	backdate bool
}

func (b *copyBuilder) BuildAll(_ context.Context, host api.Host, roots []string, opts api.BuildOptions, sink api.Sink) error {
	b.calls++
	if err := host.MkdirAll("/out"); err != nil {
		return err
	}
	for _, src := range roots {
		data, err := host.ReadFile(src)
		if err != nil {
			sink.Report(api.NewDiagnostic("File '{0}' not found.", src))
			continue
		}
		for i := 0; i < b.extra[b.calls][src]; i++ {
			host.ReadFile(src) //nolint:errcheck
		}
		if strings.Contains(string(data), "error") {
			sink.Report(api.NewDiagnostic("Found error in '{0}'.", src))
		}

		out := "/out/" + strings.TrimSuffix(vfs.Base(src), ".ts") + ".js"
		content := string(data)
		if b.nondeterministic {
			content += fmt.Sprintf("\n// build %d", b.calls)
		}
		if !opts.Force {
			if old, err := host.ReadFile(out); err == nil && string(old) == content {
				continue
			}
		}
		if err := host.WriteFile(out, []byte(content)); err != nil {
			return err
		}
		if b.backdate {
			if err := host.Touch(out, time.Time{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func newBase(t *testing.T, clk *clock.Logical) *vfs.FS {
	t.Helper()
	f := vfs.New(vfs.Options{Clock: clk})
	require.NoError(t, f.MkdirAll("/src"))
	require.NoError(t, f.WriteFile("/src/a.ts", []byte("export const x = 1;")))
	require.NoError(t, f.WriteFile("/src/b.ts", []byte("export const y = 2;")))
	return f
}

func newScenario(base *vfs.FS, phases ...Phase) *Scenario {
	return &Scenario{
		Name:       "copy",
		Tool:       "copybuild",
		Project:    "sample",
		Base:       base,
		Roots:      []string{"/src/a.ts", "/src/b.ts"},
		SourceRoot: "/src",
		Outputs:    []string{"/out/a.js", "/out/b.js"},
		Phases:     phases,
	}
}

func initialPhase() Phase {
	return Phase{
		Name: "initial",
		Expect: Expectation{
			Reads:       instrument.Tally{"/src/a.ts": 1, "/src/b.ts": 1},
			Regenerated: []string{"/out/a.js", "/out/b.js"},
		},
		VerifyOutputs: true,
	}
}

func commentPhase() Phase {
	return Phase{
		Name:  "incremental, comment-only edit",
		Edits: []Edit{Replace("/src/a.ts", "x = 1", "x = 1 // comment")},
		Expect: Expectation{
			Reads:               instrument.Tally{"/src/a.ts": 1, "/src/b.ts": 1},
			Unchanged:           []string{"/out/b.js"},
			Regenerated:         []string{"/out/a.js"},
			CheckReadMinimality: true,
		},
		VerifyOutputs: true,
	}
}

func TestRun_Passes(t *testing.T) {
	clk := clock.New()
	base := newBase(t, clk)
	r := NewRunner(&copyBuilder{}, clk)

	rep, err := r.Run(context.Background(), newScenario(base, initialPhase(), commentPhase()))
	require.NoError(t, err)
	assert.True(t, rep.Passed())
	require.Len(t, rep.Phases, 2)

	inc, ok := rep.Phase("incremental, comment-only edit")
	require.True(t, ok)
	assert.Equal(t, []string{"/out/a.js", "/src/a.ts"}, inc.Patch.Paths())
	assert.True(t, inc.Snapshot.IsReadonly())

	var states []State
	for _, tr := range rep.Trace {
		states = append(states, tr.State)
	}
	assert.Equal(t, []State{
		Init,
		Shadowed, Mutated, Ticked, Built, Asserted,
		Shadowed, Mutated, Ticked, Built, Asserted,
		Done,
	}, states)
}

func TestRun_TicksAroundEdits(t *testing.T) {
	clk := clock.New()
	base := newBase(t, clk)
	r := NewRunner(&copyBuilder{}, clk)

	rep, err := r.Run(context.Background(), newScenario(base, initialPhase(), commentPhase()))
	require.NoError(t, err)

	first, _ := rep.Phases[0].Snapshot.Stat("/out/a.js")
	edited, _ := rep.Phases[1].Snapshot.Stat("/src/a.ts")
	second, _ := rep.Phases[1].Snapshot.Stat("/out/a.js")
	assert.True(t, edited.ModTime().After(first.ModTime()), "edits are newer than the previous build")
	assert.True(t, second.ModTime().After(edited.ModTime()), "the build is newer than the edits")
	assert.Equal(t, int64(3), clk.Ticks())
}

func TestRun_BaseIsolation(t *testing.T) {
	clk := clock.New()
	base := newBase(t, clk)
	r := NewRunner(&copyBuilder{}, clk)

	_, err := r.Run(context.Background(), newScenario(base, initialPhase(), commentPhase()))
	require.NoError(t, err)

	assert.True(t, base.IsReadonly())
	assert.Empty(t, base.Diff(base))
	assert.False(t, base.Exists("/out"))
	data, err := base.ReadFile("/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "export const x = 1;", string(data))
}

func TestRun_ReportsMismatchesAndContinues(t *testing.T) {
	clk := clock.New()
	base := newBase(t, clk)
	r := NewRunner(&copyBuilder{}, clk)

	initial := initialPhase()
	initial.Expect.Reads = instrument.Tally{"/src/a.ts": 2}
	initial.Expect.Diagnostics = []api.Diagnostic{api.NewDiagnostic("Found error in '{0}'.", "/src/a.ts")}

	rep, err := r.Run(context.Background(), newScenario(base, initial, commentPhase()))
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Len(t, rep.Phases, 2, "later phases still run")
	assert.True(t, rep.Phases[1].Passed())

	mismatches := rep.Phases[0].Mismatches
	require.Len(t, mismatches, 3)
	assert.Equal(t, MismatchDiagnostics, mismatches[0].Kind)
	assert.Contains(t, mismatches[0].Detail, "-Found error in '{0}'. [/src/a.ts]")

	assert.Equal(t, Mismatch{
		Phase: "initial", Kind: MismatchReads, Path: "/src/a.ts", Expected: "2", Actual: "1",
		Detail: `expected {"/src/a.ts": 2}` + "\n" + `actual   {"/src/a.ts": 1, "/src/b.ts": 1}`,
	}, mismatches[1])
	assert.Equal(t, "/src/b.ts", mismatches[2].Path)
	assert.Equal(t, "0", mismatches[2].Expected)

	assert.Contains(t, ae.Error(), "[initial] reads /src/a.ts: expected 2, got 1")
}

func TestRun_SetupErrorIsFatal(t *testing.T) {
	clk := clock.New()
	base := newBase(t, clk)
	b := &copyBuilder{}
	r := NewRunner(b, clk)

	broken := Phase{Name: "broken", Edits: []Edit{Replace("/src/missing.ts", "a", "b")}}
	later := Phase{Name: "later"}
	rep, err := r.Run(context.Background(), newScenario(base, initialPhase(), broken, later))
	require.Error(t, err)

	var se *SetupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "broken", se.Phase)
	assert.Equal(t, "edit", se.Step)
	assert.ErrorIs(t, err, vfs.ErrNotFound)

	assert.Len(t, rep.Phases, 1)
	assert.Equal(t, err, rep.Err)
	assert.False(t, rep.Passed())
	assert.Equal(t, 2, b.calls, "initial build plus its clean verification build")
}

func TestRun_ReplaceWithoutMatch(t *testing.T) {
	clk := clock.New()
	r := NewRunner(&copyBuilder{}, clk)
	phase := Phase{Name: "edit", Edits: []Edit{Replace("/src/a.ts", "nope", "x")}}

	_, err := r.Run(context.Background(), newScenario(newBase(t, clk), phase))
	assert.ErrorIs(t, err, ErrEditNoMatch)
}

func TestRun_MissingExpectationBeforeAnyBuild(t *testing.T) {
	clk := clock.New()
	b := &copyBuilder{}
	r := NewRunner(b, clk)

	sc := newScenario(newBase(t, clk), Phase{Name: "initial"}, Phase{Name: "verify", VerifyOutputs: true})
	sc.Outputs = nil

	rep, err := r.Run(context.Background(), sc)
	require.ErrorIs(t, err, ErrMissingExpectation)
	var se *SetupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "verify", se.Phase)
	assert.Zero(t, b.calls)
	assert.Empty(t, rep.Phases)
}

func TestRun_ClockMismatch(t *testing.T) {
	r := NewRunner(&copyBuilder{}, clock.New())
	_, err := r.Run(context.Background(), newScenario(newBase(t, clock.New()), initialPhase()))
	assert.ErrorIs(t, err, ErrInvalidScenario)
}

func TestRun_DetectsOutputDrift(t *testing.T) {
	clk := clock.New()
	r := NewRunner(&copyBuilder{nondeterministic: true}, clk)

	rep, err := r.Run(context.Background(), newScenario(newBase(t, clk), initialPhase()))
	require.Error(t, err)

	mismatches := rep.Mismatches()
	require.Len(t, mismatches, 2)
	for _, m := range mismatches {
		assert.Equal(t, MismatchOutput, m.Kind)
		assert.Contains(t, m.Detail, "-// build 2")
		assert.Contains(t, m.Detail, "+// build 1")
	}
}

func TestRun_ReadMinimality(t *testing.T) {
	clk := clock.New()
	b := &copyBuilder{extra: map[int]map[string]int{3: {"/src/b.ts": 1, "/src/a.ts": 4}}}
	r := NewRunner(b, clk)

	inc := commentPhase()
	inc.Expect.Reads = nil
	rep, err := r.Run(context.Background(), newScenario(newBase(t, clk), initialPhase(), inc))
	require.Error(t, err)

	mismatches := rep.Phases[1].Mismatches
	require.Len(t, mismatches, 1, "the edited file may be read again")
	assert.Equal(t, MismatchMinimality, mismatches[0].Kind)
	assert.Equal(t, "/src/b.ts", mismatches[0].Path)
	assert.Equal(t, "at most 1", mismatches[0].Expected)
	assert.Equal(t, "2", mismatches[0].Actual)
}

func TestRun_ReadsIgnoreCase(t *testing.T) {
	clk := clock.New()
	base := vfs.New(vfs.Options{Clock: clk, IgnoreCase: true})
	require.NoError(t, base.MkdirAll("/src"))
	require.NoError(t, base.WriteFile("/src/a.ts", []byte("export const x = 1;")))
	require.NoError(t, base.WriteFile("/src/b.ts", []byte("export const y = 2;")))

	sc := newScenario(base, Phase{
		Name:   "initial",
		Expect: Expectation{Reads: instrument.Tally{"/SRC/A.ts": 1, "/src/b.ts": 1}},
	})
	sc.Roots = []string{"/SRC/a.ts", "/src/B.TS"}
	rep, err := NewRunner(&copyBuilder{}, clk).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, rep.Passed(), "%v", rep.Mismatches())
	assert.Equal(t, instrument.Tally{"/src/a.ts": 1, "/src/b.ts": 1}, rep.Phases[0].Reads)
}

func TestRun_TimestampRegression(t *testing.T) {
	clk := clock.New()
	r := NewRunner(&copyBuilder{backdate: true}, clk)

	inc := commentPhase()
	inc.VerifyOutputs = false
	initial := initialPhase()
	initial.VerifyOutputs = false
	rep, err := r.Run(context.Background(), newScenario(newBase(t, clk), initial, inc))
	require.Error(t, err)

	var kinds []MismatchKind
	for _, m := range rep.Phases[1].Mismatches {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []MismatchKind{MismatchTimestamp, MismatchRegenerated}, kinds)
}

func TestRun_Baselines(t *testing.T) {
	fs := afero.NewMemMapFs()
	run := func(accept bool) (*Report, error) {
		clk := clock.New()
		r := NewRunner(&copyBuilder{}, clk, WithBaselines(baseline.NewStore(fs, "/baselines", accept)))
		return r.Run(context.Background(), newScenario(newBase(t, clk), initialPhase(), commentPhase()))
	}

	rep, err := run(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"copybuild/sample/initial/copy.txt"}, rep.Phases[0].Baselines)

	data, err := afero.ReadFile(fs, "/baselines/copybuild/sample/incremental-comment-only-edit/copy.txt")
	require.NoError(t, err)
	assert.Contains(t, string(data), "//// [/src/a.ts] *modified*")
	assert.Contains(t, string(data), "+export const x = 1 // comment;")

	_, err = run(false)
	assert.NoError(t, err, "a second identical run matches its baselines")

	require.NoError(t, afero.WriteFile(fs, "/baselines/copybuild/sample/initial/copy.txt", []byte("stale\n"), 0o644))
	rep, err = run(false)
	require.Error(t, err)
	require.Len(t, rep.Phases[0].Mismatches, 1)
	assert.Equal(t, MismatchBaseline, rep.Phases[0].Mismatches[0].Kind)
	assert.Contains(t, rep.Phases[0].Mismatches[0].Detail, "-stale")
}

type memJournal struct{ reports []*Report }

func (j *memJournal) Record(_ context.Context, rep *Report) error {
	j.reports = append(j.reports, rep)
	return nil
}

func TestRunAll_ContinuesAfterFailure(t *testing.T) {
	clk := clock.New()
	j := &memJournal{}
	r := NewRunner(&copyBuilder{}, clk, WithJournal(j))

	bad := newScenario(newBase(t, clk), Phase{Name: "bad", Edits: []Edit{Delete("/nope")}})
	bad.Name = "bad"
	good := newScenario(newBase(t, clk), initialPhase())

	reports, err := r.RunAll(context.Background(), []*Scenario{bad, good})
	require.Error(t, err)
	assert.ErrorIs(t, err, vfs.ErrNotFound)
	require.Len(t, reports, 2)
	assert.False(t, reports[0].Passed())
	assert.True(t, reports[1].Passed())
	assert.Len(t, j.reports, 2)
}
