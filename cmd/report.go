package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentic-research/buildverify/internal/journal"
)

func init() {
	flags := reportCmd.Flags()
	flags.String("scenario", "", "Only show runs of this scenario")
	flags.Int("limit", 20, "Maximum number of runs to list")
	flags.Int64("run", 0, "Show the mismatches of one run")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report <journal.db>",
	Short: "List recorded scenario runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := journal.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		ctx := cmd.Context()
		w := cmd.OutOrStdout()
		if id, _ := cmd.Flags().GetInt64("run"); id > 0 {
			mismatches, err := j.Mismatches(ctx, id)
			if err != nil {
				return err
			}
			if len(mismatches) == 0 {
				_, _ = fmt.Fprintf(w, "run %d: no mismatches\n", id)
				return nil
			}
			for _, m := range mismatches {
				_, _ = fmt.Fprintln(w, m.String())
				if m.Detail != "" {
					_, _ = fmt.Fprintln(w, m.Detail)
				}
			}
			return nil
		}

		name, _ := cmd.Flags().GetString("scenario")
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := j.Runs(ctx, name, limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			status := color.GreenString("PASS")
			if !r.Passed {
				status = color.RedString("FAIL")
			}
			_, _ = fmt.Fprintf(w, "%6d  %s  %s  %s  phases=%d mismatches=%d\n",
				r.ID, r.RecordedAt.Format(time.DateTime), status, r.Scenario, r.Phases, r.Mismatches)
			if r.Err != "" {
				_, _ = fmt.Fprintf(w, "        %s\n", r.Err)
			}
		}
		return nil
	},
}
