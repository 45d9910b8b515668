package scenario

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/agentic-research/buildverify/api"
	"github.com/agentic-research/buildverify/internal/baseline"
	"github.com/agentic-research/buildverify/internal/buildinfo"
	"github.com/agentic-research/buildverify/internal/instrument"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// Baseline extensions written per phase.
const (
	ExtPatch     = "txt"
	ExtBundle    = "bundle.txt"
	ExtSourceMap = "sourcemap.txt"
)

// asserter checks one phase and appends mismatches to its report.
type asserter struct {
	sc     *Scenario
	phase  Phase
	prev   *vfs.FS
	work   *vfs.FS
	report *PhaseReport
}

func (a *asserter) fail(m Mismatch) {
	m.Phase = a.phase.Name
	a.report.Mismatches = append(a.report.Mismatches, m)
}

func (a *asserter) diagnostics() {
	want, got := a.phase.Expect.Diagnostics, a.report.Diagnostics
	if len(want) == len(got) && lo.EveryBy(lo.Range(len(want)), func(i int) bool { return want[i].Equal(got[i]) }) {
		return
	}
	a.fail(Mismatch{
		Kind:     MismatchDiagnostics,
		Expected: strconv.Itoa(len(want)) + " diagnostic(s)",
		Actual:   strconv.Itoa(len(got)),
		Detail:   baseline.UnifiedDiff("diagnostics", renderDiagnostics(want), renderDiagnostics(got)),
	})
}

func renderDiagnostics(diags []api.Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(d.Template)
		if len(d.Args) > 0 {
			b.WriteString(" [" + strings.Join(d.Args, ", ") + "]")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (a *asserter) reads() {
	want := a.phase.Expect.Reads
	if want == nil {
		return
	}
	if a.sc.Base.IgnoreCase() {
		want = want.Fold()
	}
	for _, d := range a.report.Reads.Compare(want) {
		a.fail(Mismatch{
			Kind:     MismatchReads,
			Path:     d.Path,
			Expected: strconv.Itoa(d.Expected),
			Actual:   strconv.Itoa(d.Actual),
			Detail:   "expected " + want.String() + "\nactual   " + a.report.Reads.String(),
		})
	}
}

func (a *asserter) minimality(prevReads instrument.Tally, edited []string) {
	touched := lo.SliceToMap(edited, func(p string) (string, bool) { return p, true })
	keep := func(p string) bool {
		if a.sc.Base.IgnoreCase() {
			p = strings.ToLower(p)
		}
		return !touched[p]
	}
	for _, d := range a.report.Reads.Exceeding(prevReads, keep) {
		a.fail(Mismatch{
			Kind:     MismatchMinimality,
			Path:     d.Path,
			Expected: "at most " + strconv.Itoa(d.Expected),
			Actual:   strconv.Itoa(d.Actual),
		})
	}
}

// timestamps checks that every declared output written in this phase is
// strictly newer than its previous version.
func (a *asserter) timestamps() {
	for _, out := range a.sc.Outputs {
		cur, err := a.work.Stat(out)
		if err != nil || cur.IsDir() || !a.work.WasChanged(out) {
			continue
		}
		old, err := a.prev.Stat(out)
		if err != nil || old.IsDir() {
			continue
		}
		if !cur.ModTime().After(old.ModTime()) {
			a.fail(Mismatch{
				Kind:     MismatchTimestamp,
				Path:     cur.Path(),
				Expected: "newer than " + stamp(old.ModTime()),
				Actual:   stamp(cur.ModTime()),
			})
		}
	}
}

func (a *asserter) unchanged() {
	for _, p := range a.phase.Expect.Unchanged {
		p = vfs.Clean(p)
		oldData, errOld := a.prev.ReadFile(p)
		newData, errNew := a.work.ReadFile(p)
		if errOld != nil || errNew != nil {
			a.fail(Mismatch{Kind: MismatchUnchanged, Path: p, Expected: "file in both phases", Actual: describeMissing(errOld, errNew)})
			continue
		}
		if string(oldData) != string(newData) {
			a.fail(Mismatch{
				Kind: MismatchUnchanged, Path: p,
				Expected: "same content", Actual: "content changed",
				Detail: baseline.UnifiedDiff(p, string(oldData), string(newData)),
			})
			continue
		}
		oldInfo, _ := a.prev.Stat(p)
		newInfo, _ := a.work.Stat(p)
		if !oldInfo.ModTime().Equal(newInfo.ModTime()) {
			a.fail(Mismatch{
				Kind: MismatchUnchanged, Path: p,
				Expected: "timestamp " + stamp(oldInfo.ModTime()),
				Actual:   "timestamp " + stamp(newInfo.ModTime()),
			})
		}
	}
}

func (a *asserter) regenerated() {
	for _, p := range a.phase.Expect.Regenerated {
		p = vfs.Clean(p)
		cur, err := a.work.Stat(p)
		if err != nil {
			a.fail(Mismatch{Kind: MismatchRegenerated, Path: p, Expected: "regenerated file", Actual: "missing"})
			continue
		}
		old, err := a.prev.Stat(p)
		if err != nil {
			continue
		}
		if !cur.ModTime().After(old.ModTime()) {
			a.fail(Mismatch{
				Kind:     MismatchRegenerated,
				Path:     p,
				Expected: "newer than " + stamp(old.ModTime()),
				Actual:   stamp(cur.ModTime()),
			})
		}
	}
}

func describeMissing(errOld, errNew error) string {
	switch {
	case errOld != nil && errNew != nil:
		return "missing in both phases"
	case errOld != nil:
		return "missing before this phase"
	default:
		return "missing after this phase"
	}
}

func (a *asserter) baselines(store *baseline.Store) {
	key := baseline.Key{Tool: a.sc.Tool, Project: a.sc.Project, Phase: a.phase.Name, Scenario: a.sc.Name}

	key.Ext = ExtPatch
	a.checkBaseline(store, key, baseline.RenderPatch(a.report.Patch))

	if a.sc.BuildInfo != "" && a.work.IsFile(a.sc.BuildInfo) {
		content, err := a.renderBundles()
		if err != nil {
			a.fail(Mismatch{Kind: MismatchArtifact, Path: vfs.Clean(a.sc.BuildInfo), Detail: err.Error()})
		} else if content != "" {
			key.Ext = ExtBundle
			a.checkBaseline(store, key, content)
		}
	}

	if len(a.sc.SourceMaps) > 0 {
		content, err := a.renderSourceMaps()
		if err != nil {
			a.fail(Mismatch{Kind: MismatchArtifact, Detail: err.Error()})
		} else if content != "" {
			key.Ext = ExtSourceMap
			a.checkBaseline(store, key, content)
		}
	}
}

func (a *asserter) checkBaseline(store *baseline.Store, key baseline.Key, content string) {
	a.report.Baselines = append(a.report.Baselines, key.Path())
	err := store.Check(key, content)
	if err == nil {
		return
	}
	m := Mismatch{Kind: MismatchBaseline, Path: key.Path()}
	var me *baseline.MismatchError
	if errors.As(err, &me) {
		m.Detail = me.Diff
	} else {
		m.Detail = err.Error()
	}
	a.fail(m)
}

// renderBundles dumps the js and dts bundles recorded in the build info,
// resolved against the outFile they describe.
func (a *asserter) renderBundles() (string, error) {
	data, err := a.work.ReadFile(a.sc.BuildInfo)
	if err != nil {
		return "", err
	}
	info, err := buildinfo.Parse(data)
	if err != nil {
		return "", err
	}
	outFile := info.Options["outFile"]
	if outFile == "" || (info.JS == nil && info.DTS == nil) {
		return "", nil
	}

	var b strings.Builder
	for _, part := range []struct {
		path   string
		bundle *buildinfo.Bundle
	}{
		{outFile, info.JS},
		{strings.TrimSuffix(outFile, ".js") + ".d.ts", info.DTS},
	} {
		if part.bundle == nil {
			continue
		}
		content, err := a.work.ReadFile(part.path)
		if err != nil {
			return "", err
		}
		rendered, err := baseline.RenderBundle(part.path, part.bundle, string(content))
		if err != nil {
			return "", err
		}
		b.WriteString(rendered)
	}
	return b.String(), nil
}

func (a *asserter) renderSourceMaps() (string, error) {
	var b strings.Builder
	for _, p := range a.sc.SourceMaps {
		data, err := a.work.ReadFile(p)
		if errors.Is(err, vfs.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		sm, err := buildinfo.ParseSourceMap(data)
		if err != nil {
			return "", err
		}
		generated, _ := a.work.ReadFile(strings.TrimSuffix(p, ".map"))
		rendered, err := baseline.RenderSourceMap(vfs.Clean(p), sm, string(generated))
		if err != nil {
			return "", err
		}
		b.WriteString(rendered)
	}
	return b.String(), nil
}

// outputsMatch compares every declared output of the incremental build
// with the clean build.
func (a *asserter) outputsMatch(clean *vfs.FS) {
	for _, out := range a.sc.Outputs {
		out = vfs.Clean(out)
		want, errWant := clean.ReadFile(out)
		got, errGot := a.work.ReadFile(out)
		switch {
		case errWant != nil && errGot != nil:
		case errWant != nil:
			a.fail(Mismatch{Kind: MismatchOutput, Path: out, Expected: "absent (clean build)", Actual: "present"})
		case errGot != nil:
			a.fail(Mismatch{Kind: MismatchOutput, Path: out, Expected: "present (clean build)", Actual: "absent"})
		case string(want) != string(got):
			a.fail(Mismatch{
				Kind: MismatchOutput, Path: out,
				Expected: "clean build bytes", Actual: "different bytes",
				Detail: baseline.UnifiedDiff(out, string(want), string(got)),
			})
		}
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
