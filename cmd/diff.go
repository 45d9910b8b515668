package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/buildverify/internal/baseline"
	"github.com/agentic-research/buildverify/internal/clock"
	"github.com/agentic-research/buildverify/internal/fixture"
	"github.com/agentic-research/buildverify/internal/vfs"
)

func init() {
	diffCmd.Flags().Bool("ignore-case", false, "Compare paths case-insensitively")
	rootCmd.AddCommand(diffCmd)
}

var diffCmd = &cobra.Command{
	Use:   "diff <before-dir> <after-dir>",
	Short: "Print the patch that turns one directory tree into another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ignoreCase, _ := cmd.Flags().GetBool("ignore-case")
		clk := clock.New()
		before := vfs.New(vfs.Options{Clock: clk, IgnoreCase: ignoreCase})
		if err := fixture.LoadDir(args[0], before, "/"); err != nil {
			return err
		}
		after := vfs.New(vfs.Options{Clock: clk, IgnoreCase: ignoreCase})
		if err := fixture.LoadDir(args[1], after, "/"); err != nil {
			return err
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), baseline.RenderPatch(after.Diff(before)))
		return err
	},
}
