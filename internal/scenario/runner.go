package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentic-research/buildverify/api"
	"github.com/agentic-research/buildverify/internal/baseline"
	"github.com/agentic-research/buildverify/internal/clock"
	"github.com/agentic-research/buildverify/internal/instrument"
	"github.com/agentic-research/buildverify/internal/logging"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// Journal persists scenario reports.
type Journal interface {
	Record(ctx context.Context, rep *Report) error
}

// Runner executes scenarios against a builder. Scenarios run one at a time.
type Runner struct {
	builder api.Builder
	clock   *clock.Logical
	store   *baseline.Store
	journal Journal
	log     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithBaselines checks rendered baselines against store.
func WithBaselines(store *baseline.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithJournal records every finished scenario in j.
func WithJournal(j Journal) Option {
	return func(r *Runner) { r.journal = j }
}

// WithLogger replaces the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// NewRunner returns a runner owning clk. Base snapshots of the scenarios it
// runs must be stamped by the same clock.
func NewRunner(builder api.Builder, clk *clock.Logical, opts ...Option) *Runner {
	r := &Runner{builder: builder, clock: clk, log: logging.Sub("scenario")}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Clock returns the runner's logical clock.
func (r *Runner) Clock() *clock.Logical { return r.clock }

// RunAll runs every scenario, continuing after failures. The returned error
// joins the error of every scenario that did not pass.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Report, error) {
	reports := make([]*Report, 0, len(scenarios))
	var errs []error
	for _, sc := range scenarios {
		rep, err := r.Run(ctx, sc)
		reports = append(reports, rep)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// Run executes one scenario. It returns a *SetupError when the scenario
// could not be carried out and an *AssertionError when it ran but the build
// misbehaved. The report is returned in both cases.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	rep := &Report{Scenario: sc.Name}
	log := r.log.With("scenario", sc.Name)

	err := sc.Validate()
	if err == nil && sc.Base.Clock() != vfs.Clock(r.clock) {
		err = &SetupError{Scenario: sc.Name, Step: "validate", Err: fmt.Errorf("%w: base snapshot uses a different clock", ErrInvalidScenario)}
	}
	if err != nil {
		rep.Err = err
		log.Warn("scenario invalid", "err", err)
		r.record(ctx, rep)
		return rep, err
	}

	sc.Base.MakeReadonly()
	m := &machine{}
	m.trace = append(m.trace, Transition{State: Init, Time: r.clock.Now()})

	prev := sc.Base
	var prevReads instrument.Tally
	for _, ph := range sc.Phases {
		pr, err := r.runPhase(ctx, sc, ph, m, prev, prevReads)
		if err != nil {
			rep.Err = err
			rep.Trace = m.trace
			log.Warn("scenario aborted", "phase", ph.Name, "err", err)
			r.record(ctx, rep)
			return rep, err
		}
		rep.Phases = append(rep.Phases, pr)
		prev, prevReads = pr.Snapshot, pr.Reads

		if pr.Passed() {
			log.Info("phase passed", "phase", ph.Name, "reads", pr.Reads.Total(), "changes", len(pr.Patch))
		} else {
			log.Warn("phase failed", "phase", ph.Name, "mismatches", len(pr.Mismatches))
		}
	}
	m.to("", Done, r.clock.Now())
	rep.Trace = m.trace
	r.record(ctx, rep)

	if mismatches := rep.Mismatches(); len(mismatches) > 0 {
		return rep, &AssertionError{Scenario: sc.Name, Mismatches: mismatches}
	}
	return rep, nil
}

func (r *Runner) record(ctx context.Context, rep *Report) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(ctx, rep); err != nil {
		r.log.Warn("journal write failed", "scenario", rep.Scenario, "err", err)
	}
}

func (r *Runner) enter(m *machine, phase string, s State) {
	m.to(phase, s, r.clock.Now())
	r.log.Debug("state", "phase", phase, "state", s.String(), "tick", r.clock.Ticks())
}

func (r *Runner) runPhase(ctx context.Context, sc *Scenario, ph Phase, m *machine, prev *vfs.FS, prevReads instrument.Tally) (*PhaseReport, error) {
	setupErr := func(step string, err error) error {
		return &SetupError{Scenario: sc.Name, Phase: ph.Name, Step: step, Err: err}
	}

	r.enter(m, ph.Name, Shadowed)
	work := prev.Shadow()

	// Edits land one tick after the previous build so they are strictly
	// newer than anything it wrote.
	if len(ph.Edits) > 0 {
		r.clock.Tick()
	}
	for _, e := range ph.Edits {
		if err := e.Apply(work, r.clock.Now()); err != nil {
			return nil, setupErr("edit", fmt.Errorf("%s: %w", e, err))
		}
	}
	edited := work.ChangedPaths()
	r.enter(m, ph.Name, Mutated)

	r.clock.Tick()
	r.enter(m, ph.Name, Ticked)

	rec := instrument.NewRecorder(sc.SourceRoot, sc.Base.IgnoreCase())
	host := instrument.Wrap(instrument.NewHost(work, r.clock), rec)
	var diags api.Collector
	if err := r.builder.BuildAll(ctx, host, sc.Roots, ph.Options, &diags); err != nil {
		return nil, setupErr("build", err)
	}
	work.MakeReadonly()
	r.enter(m, ph.Name, Built)

	pr := &PhaseReport{
		Name:        ph.Name,
		Diagnostics: diags.Diagnostics(),
		Reads:       rec.Tally(),
		Patch:       work.Diff(prev, vfs.WithModTimes()),
		Snapshot:    work,
	}
	a := &asserter{sc: sc, phase: ph, prev: prev, work: work, report: pr}
	a.diagnostics()
	a.reads()
	if ph.Expect.CheckReadMinimality && prevReads != nil {
		a.minimality(prevReads, edited)
	}
	a.timestamps()
	a.unchanged()
	a.regenerated()
	if r.store != nil {
		a.baselines(r.store)
	}
	if ph.VerifyOutputs {
		if err := r.verifyOutputs(ctx, sc, ph, a); err != nil {
			return nil, setupErr("verify", err)
		}
	}
	r.enter(m, ph.Name, Asserted)
	return pr, nil
}

// verifyOutputs runs a forced build from scratch in a throwaway shadow with
// every declared output removed, then compares outputs byte for byte.
func (r *Runner) verifyOutputs(ctx context.Context, sc *Scenario, ph Phase, a *asserter) error {
	clean := a.work.Shadow()
	for _, out := range append(append([]string{}, sc.Outputs...), sc.BuildInfo) {
		if out == "" || !clean.Exists(out) {
			continue
		}
		if err := clean.Remove(out); err != nil {
			return err
		}
	}

	opts := ph.Options
	opts.Force, opts.DryRun = true, false
	var diags api.Collector
	if err := r.builder.BuildAll(ctx, instrument.NewHost(clean, r.clock), sc.Roots, opts, &diags); err != nil {
		return fmt.Errorf("clean build: %w", err)
	}
	a.outputsMatch(clean)
	return nil
}
