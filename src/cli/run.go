package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"tenant-backup/src/lifecycle"
	"tenant-backup/src/metrics"
	"tenant-backup/src/model"
	"tenant-backup/src/orchestrator"
	"tenant-backup/src/retention"
	"tenant-backup/src/transport"
)

// wallClock is the clock every run uses. Tests replace it.
var wallClock clock.Clock = clock.WallClock

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Back up every instance of the allow-listed tenants, then prune old artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, stderr)
			if err != nil {
				return err
			}
			defer sess.Close()
			ctx := commandContext(cmd)
			cfg := sess.cfg
			logger := sess.logger

			provider, err := newProvider(cfg, logger)
			if err != nil {
				return err
			}
			st, err := openStore(cfg, "", logger)
			if err != nil {
				return err
			}
			defer st.Close()

			out := stdout
			rec := metrics.New()
			coord := orchestrator.New(orchestrator.Config{
				Identity: provider,
				Registry: provider,
				Lifecycle: lifecycle.New(lifecycle.Config{
					Registry:     provider,
					Clock:        wallClock,
					Admission:    lifecycle.NewAdmission(cfg.MaxConcurrentSnapshots),
					PollInterval: cfg.PollInterval.Std(),
					Timeout:      cfg.SnapshotTimeout.Std(),
					Logger:       logger,
				}),
				Transport: transport.New(transport.Config{
					Source:   imageSource(cfg),
					Store:    st,
					Out:      out,
					Progress: progress,
					Logger:   logger,
				}),
				Retention: retention.New(retention.Config{Store: st, Clock: wallClock, Out: out, Logger: logger}),
				Metrics:   rec,

				TenantPrefixes: cfg.TenantPrefixes,
				KeepDays:       cfg.KeepDays,
				Destination:    st.String(),
				RunID:          sess.runID,
				Clock:          wallClock,
				Out:            out,
				Logger:         logger,
			})

			if getSafetyOptions(cmd).DryRun {
				return previewRun(cmd, coord, retention.New(retention.Config{Store: st, Clock: wallClock, Logger: logger}), cfg.KeepDays, stdout)
			}

			if _, err := coord.Run(ctx); err != nil {
				return err
			}
			if cfg.MetricsFile != "" {
				if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
					logger.Error("writing metrics textfile failed", "path", cfg.MetricsFile, "error", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "Show a byte counter while each image uploads")
	return cmd
}

// previewRun lists the instances a run would snapshot and the artifacts it
// would prune.
func previewRun(cmd *cobra.Command, coord *orchestrator.Coordinator, mgr *retention.Manager, keepDays int, w io.Writer) error {
	ctx := commandContext(cmd)
	recs, err := coord.Discover(ctx)
	if err != nil {
		return err
	}
	renderInstances(w, recs)
	plan, err := mgr.Plan(ctx, keepDays)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d artifacts dated on or before %s would be pruned.\n", len(plan.Expired), plan.Cutoff.Format("2006-01-02"))
	return nil
}

func renderInstances(w io.Writer, recs []*model.InstanceRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tINSTANCE\tID\tACTION")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\tsnapshot\n", r.TenantName, r.Name, r.ID)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%s instances would be backed up.\n", humanize.Comma(int64(len(recs))))
}
