package scenario

import (
	"fmt"

	"github.com/agentic-research/buildverify/api"
	"github.com/agentic-research/buildverify/internal/instrument"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// MismatchKind classifies an assertion failure.
type MismatchKind string

const (
	MismatchDiagnostics MismatchKind = "diagnostics"
	MismatchReads       MismatchKind = "reads"
	MismatchMinimality  MismatchKind = "read-minimality"
	MismatchTimestamp   MismatchKind = "timestamp"
	MismatchUnchanged   MismatchKind = "unchanged"
	MismatchRegenerated MismatchKind = "regenerated"
	MismatchOutput      MismatchKind = "output"
	MismatchArtifact    MismatchKind = "artifact"
	MismatchBaseline    MismatchKind = "baseline"
)

// Mismatch is one failed assertion with enough detail to diagnose it.
type Mismatch struct {
	Phase    string
	Kind     MismatchKind
	Path     string
	Expected string
	Actual   string
	Detail   string // multi-line context such as a unified diff
}

func (m Mismatch) String() string {
	s := fmt.Sprintf("[%s] %s", m.Phase, m.Kind)
	if m.Path != "" {
		s += " " + m.Path
	}
	if m.Expected != "" || m.Actual != "" {
		s += fmt.Sprintf(": expected %s, got %s", m.Expected, m.Actual)
	}
	return s
}

// PhaseReport is the outcome of one phase.
type PhaseReport struct {
	Name        string
	Diagnostics []api.Diagnostic
	Reads       instrument.Tally
	// Patch is the phase's filesystem change relative to the previous
	// phase, modification times included.
	Patch      vfs.Patch
	Mismatches []Mismatch
	// Baselines lists the baseline files checked, relative to the store.
	Baselines []string
	// Snapshot is the frozen filesystem after the build.
	Snapshot *vfs.FS
}

// Passed reports whether the phase had no mismatches.
func (p *PhaseReport) Passed() bool { return len(p.Mismatches) == 0 }

// Report is the outcome of one scenario.
type Report struct {
	Scenario string
	Phases   []*PhaseReport
	Trace    []Transition
	// Err is the setup error that aborted the scenario, if any.
	Err error
}

// Passed reports whether the scenario ran to completion without mismatches.
func (r *Report) Passed() bool {
	if r.Err != nil {
		return false
	}
	for _, p := range r.Phases {
		if !p.Passed() {
			return false
		}
	}
	return true
}

// Mismatches returns every mismatch across all phases in order.
func (r *Report) Mismatches() []Mismatch {
	var out []Mismatch
	for _, p := range r.Phases {
		out = append(out, p.Mismatches...)
	}
	return out
}

// Phase returns the report of the named phase.
func (r *Report) Phase(name string) (*PhaseReport, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
