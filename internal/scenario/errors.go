package scenario

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingExpectation marks a phase that asks for output verification
	// without the scenario declaring any outputs.
	ErrMissingExpectation = errors.New("missing expectation")

	// ErrInvalidScenario marks a scenario that cannot be run at all.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrEditNoMatch is returned by a replace edit whose old text is absent.
	ErrEditNoMatch = errors.New("replace target not found")
)

// SetupError aborts a scenario. It reports a malformed scenario script or a
// broken builder rather than a build regression.
type SetupError struct {
	Scenario string
	Phase    string // empty when validation fails before any phase runs
	Step     string // "validate", "edit", "build" or "verify"
	Err      error
}

func (e *SetupError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("scenario %q: %s: %v", e.Scenario, e.Step, e.Err)
	}
	return fmt.Sprintf("scenario %q phase %q: %s: %v", e.Scenario, e.Phase, e.Step, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// AssertionError collects every mismatch of a scenario. It is the expected
// outcome of a failing build under test.
type AssertionError struct {
	Scenario   string
	Mismatches []Mismatch
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %q: %d assertion(s) failed", e.Scenario, len(e.Mismatches))
	for _, m := range e.Mismatches {
		b.WriteString("\n  ")
		b.WriteString(m.String())
		if m.Detail != "" {
			for _, line := range strings.Split(strings.TrimRight(m.Detail, "\n"), "\n") {
				b.WriteString("\n    ")
				b.WriteString(line)
			}
		}
	}
	return b.String()
}
