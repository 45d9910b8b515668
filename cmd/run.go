package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/agentic-research/buildverify/internal/baseline"
	"github.com/agentic-research/buildverify/internal/clock"
	"github.com/agentic-research/buildverify/internal/config"
	"github.com/agentic-research/buildverify/internal/fixture"
	"github.com/agentic-research/buildverify/internal/journal"
	"github.com/agentic-research/buildverify/internal/samplebuild"
	"github.com/agentic-research/buildverify/internal/scenario"
)

func init() {
	flags := runCmd.Flags()
	flags.Bool("accept", false, "Overwrite baselines with the current output")
	flags.String("baselines", "", "Baseline directory (overrides the suite setting)")
	flags.String("journal", "", "Record results in this SQLite journal")
	flags.StringSlice("scenario", nil, "Run only the named scenarios")
	flags.String("dump-failed", "", "Write the filesystem of every failed phase under this directory")
	_ = cfg.BindPFlag("accept", flags.Lookup("accept"))
	_ = cfg.BindPFlag("baselines", flags.Lookup("baselines"))
	_ = cfg.BindPFlag("journal", flags.Lookup("journal"))
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <suite.hcl>",
	Short: "Run the scenarios of a suite against the sample builder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		suite, err := config.Load(args[0])
		if err != nil {
			return err
		}
		clk := clock.New()
		scenarios, err := suite.Resolve(clk)
		if err != nil {
			return err
		}
		if only, _ := cmd.Flags().GetStringSlice("scenario"); len(only) > 0 {
			scenarios = lo.Filter(scenarios, func(sc *scenario.Scenario, _ int) bool {
				return lo.Contains(only, sc.Name)
			})
			if len(scenarios) == 0 {
				return fmt.Errorf("no scenario matches %s", strings.Join(only, ", "))
			}
		}

		var opts []scenario.Option
		dir := cfg.GetString("baselines")
		if dir == "" {
			dir = suite.BaselineDir()
		}
		if dir != "" {
			store := baseline.NewStore(afero.NewOsFs(), dir, cfg.GetBool("accept"))
			opts = append(opts, scenario.WithBaselines(store))
		}
		if path := cfg.GetString("journal"); path != "" {
			j, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()
			opts = append(opts, scenario.WithJournal(j))
		}

		runner := scenario.NewRunner(samplebuild.New(), clk, opts...)
		reports, runErr := runner.RunAll(context.Background(), scenarios)
		failed := printReports(cmd.OutOrStdout(), reports)
		if dir, _ := cmd.Flags().GetString("dump-failed"); dir != "" {
			if err := dumpFailed(cmd.OutOrStdout(), reports, dir); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(reports))
		}
		return runErr
	},
}

// printReports writes a PASS/FAIL line per scenario and the details of
// every failure. It returns the number of failed scenarios.
func printReports(w io.Writer, reports []*scenario.Report) int {
	failed := 0
	for _, rep := range reports {
		if rep.Passed() {
			_, _ = fmt.Fprintf(w, "%s %s (%d phases)\n", color.GreenString("PASS"), rep.Scenario, len(rep.Phases))
			continue
		}
		failed++
		_, _ = fmt.Fprintf(w, "%s %s\n", color.RedString("FAIL"), rep.Scenario)
		if rep.Err != nil {
			_, _ = fmt.Fprintf(w, "  %v\n", rep.Err)
		}
		for _, m := range rep.Mismatches() {
			_, _ = fmt.Fprintf(w, "  %s\n", color.YellowString(m.String()))
			if m.Detail == "" {
				continue
			}
			for _, line := range strings.Split(strings.TrimRight(m.Detail, "\n"), "\n") {
				_, _ = fmt.Fprintf(w, "    %s\n", colorDiffLine(line))
			}
		}
	}
	return failed
}

// dumpFailed writes the snapshot of every failed phase to
// <dir>/<scenario-slug>/<phase-slug>.
func dumpFailed(w io.Writer, reports []*scenario.Report, dir string) error {
	for _, rep := range reports {
		for _, ph := range rep.Phases {
			if ph.Passed() || ph.Snapshot == nil {
				continue
			}
			dst := filepath.Join(dir, baseline.Slug(rep.Scenario), baseline.Slug(ph.Name))
			if err := fixture.DumpDir(ph.Snapshot, "/", dst); err != nil {
				return fmt.Errorf("dump %s/%s: %w", rep.Scenario, ph.Name, err)
			}
			_, _ = fmt.Fprintf(w, "dumped %s/%s to %s\n", rep.Scenario, ph.Name, dst)
		}
	}
	return nil
}

func colorDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return line
	case strings.HasPrefix(line, "+"):
		return color.GreenString(line)
	case strings.HasPrefix(line, "-"):
		return color.RedString(line)
	case strings.HasPrefix(line, "@@"):
		return color.CyanString(line)
	}
	return line
}
