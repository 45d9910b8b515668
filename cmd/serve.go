package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/buildverify/internal/baseline"
	"github.com/agentic-research/buildverify/internal/clock"
	"github.com/agentic-research/buildverify/internal/config"
	"github.com/agentic-research/buildverify/internal/logging"
	"github.com/agentic-research/buildverify/internal/nfsmount"
	"github.com/agentic-research/buildverify/internal/samplebuild"
	"github.com/agentic-research/buildverify/internal/scenario"
)

func init() {
	flags := serveCmd.Flags()
	flags.String("scenario", "", "Scenario to run (required)")
	flags.String("phase", "", "Phase whose snapshot is served (default: last)")
	flags.String("addr", "127.0.0.1:0", "NFS listen address")
	flags.String("mount", "", "Mount the snapshot at this directory")
	_ = serveCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve <suite.hcl>",
	Short: "Run a scenario and export a phase snapshot read-only over NFS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("scenario")
		phaseName, _ := cmd.Flags().GetString("phase")
		addr, _ := cmd.Flags().GetString("addr")
		mountpoint, _ := cmd.Flags().GetString("mount")

		suite, err := config.Load(args[0])
		if err != nil {
			return err
		}
		clk := clock.New()
		sc, err := suite.Find(clk, name)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logging.Sub("serve")
		rep, err := scenario.NewRunner(samplebuild.New(), clk).Run(ctx, sc)
		if err != nil {
			log.Warn("scenario did not pass", "scenario", sc.Name, "err", err)
		}
		ph, err := pickPhase(rep, phaseName)
		if err != nil {
			return err
		}

		srv, err := nfsmount.NewServer(nfsmount.NewSnapshotFS(ph.Snapshot, phaseFiles(ph)), addr)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		log.Info("serving snapshot", "scenario", rep.Scenario, "phase", ph.Name, "port", srv.Port())
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "serving %s/%s on port %d\n", rep.Scenario, ph.Name, srv.Port())

		if mountpoint != "" {
			if err := nfsmount.Mount(srv.Port(), mountpoint); err != nil {
				return err
			}
			defer func() {
				if err := nfsmount.Unmount(mountpoint); err != nil {
					log.Warn("unmount failed", "mountpoint", mountpoint, "err", err)
				}
			}()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mounted at %s\n", mountpoint)
		}

		<-ctx.Done()
		return nil
	},
}

// pickPhase returns the named phase, or the last phase that produced a
// snapshot when name is empty.
func pickPhase(rep *scenario.Report, name string) (*scenario.PhaseReport, error) {
	if name != "" {
		ph, ok := rep.Phase(name)
		if !ok || ph.Snapshot == nil {
			return nil, fmt.Errorf("scenario %s has no snapshot for phase %q", rep.Scenario, name)
		}
		return ph, nil
	}
	for i := len(rep.Phases) - 1; i >= 0; i-- {
		if rep.Phases[i].Snapshot != nil {
			return rep.Phases[i], nil
		}
	}
	return nil, fmt.Errorf("scenario %s produced no snapshot", rep.Scenario)
}

// phaseFiles are the virtual files served next to the snapshot root.
func phaseFiles(ph *scenario.PhaseReport) map[string][]byte {
	var diags strings.Builder
	for _, d := range ph.Diagnostics {
		diags.WriteString(d.String())
		diags.WriteByte('\n')
	}
	return map[string][]byte{
		"_patch.txt":       []byte(baseline.RenderPatch(ph.Patch)),
		"_diagnostics.txt": []byte(diags.String()),
		"_reads.txt":       []byte(ph.Reads.String() + "\n"),
	}
}
