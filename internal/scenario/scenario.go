// Package scenario runs scripted build scenarios: each phase shadows the
// previous filesystem state, applies edits, ticks the logical clock, builds
// with read instrumentation and asserts the outcome against expectations.
package scenario

import (
	"fmt"

	"github.com/agentic-research/buildverify/api"
	"github.com/agentic-research/buildverify/internal/instrument"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// Expectation is what one phase must produce.
type Expectation struct {
	// Diagnostics are compared in order, template and args. Nil expects none.
	Diagnostics []api.Diagnostic
	// Reads is the expected read tally under the source root. Nil skips the
	// check; an empty tally expects no reads at all.
	Reads instrument.Tally
	// Unchanged outputs keep both bytes and timestamp of the previous phase.
	Unchanged []string
	// Regenerated outputs get a timestamp strictly newer than the previous
	// phase.
	Regenerated []string
	// CheckReadMinimality fails any path not edited in this phase that is
	// read more often than in the previous phase.
	CheckReadMinimality bool
}

// Phase is one build step of a scenario.
type Phase struct {
	Name    string
	Edits   []Edit
	Options api.BuildOptions
	Expect  Expectation
	// VerifyOutputs compares every declared output with a clean build.
	VerifyOutputs bool
}

// Scenario is a scripted sequence of phases over a shared base snapshot.
type Scenario struct {
	Name    string
	Tool    string // baseline directory for the tool under test
	Project string

	// Base is frozen before the first phase. It must use the runner's clock.
	Base       *vfs.FS
	Roots      []string
	SourceRoot string
	// Outputs are the files the build is expected to produce.
	Outputs []string
	// BuildInfo, when set, is dumped as a bundle baseline after each phase.
	BuildInfo string
	// SourceMaps are dumped as baselines after each phase when present.
	SourceMaps []string

	Phases []Phase
}

// Validate checks a scenario before anything runs.
func (sc *Scenario) Validate() error {
	invalid := func(format string, args ...any) error {
		return &SetupError{Scenario: sc.Name, Step: "validate", Err: fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...))}
	}
	switch {
	case sc.Name == "":
		return invalid("missing name")
	case sc.Base == nil:
		return invalid("missing base filesystem")
	case len(sc.Roots) == 0:
		return invalid("no build roots")
	case sc.SourceRoot == "":
		return invalid("no source root")
	case len(sc.Phases) == 0:
		return invalid("no phases")
	}

	seen := map[string]bool{}
	for _, ph := range sc.Phases {
		if ph.Name == "" {
			return invalid("phase without a name")
		}
		if seen[ph.Name] {
			return invalid("duplicate phase %q", ph.Name)
		}
		seen[ph.Name] = true
		for _, e := range ph.Edits {
			if err := e.Validate(); err != nil {
				return &SetupError{Scenario: sc.Name, Phase: ph.Name, Step: "validate", Err: err}
			}
		}
		if ph.VerifyOutputs && len(sc.Outputs) == 0 {
			return &SetupError{
				Scenario: sc.Name, Phase: ph.Name, Step: "validate",
				Err: fmt.Errorf("%w: output verification needs declared outputs", ErrMissingExpectation),
			}
		}
	}
	return nil
}
