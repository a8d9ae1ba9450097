package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"tenant-backup/src/retention"
	"tenant-backup/src/safety"
)

func newPruneCmd(stdout, stderr io.Writer) *cobra.Command {
	var keepDays int
	var tgt string
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backup artifacts older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, stderr)
			if err != nil {
				return err
			}
			defer sess.Close()
			ctx := commandContext(cmd)

			days := sess.cfg.KeepDays
			if cmd.Flags().Changed("keep-days") {
				if keepDays < 0 {
					return errors.NotValidf("--keep-days %d", keepDays)
				}
				days = keepDays
			}
			st, err := openStore(sess.cfg, tgt, sess.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			mgr := retention.New(retention.Config{Store: st, Clock: wallClock, Out: stdout, Logger: sess.logger})
			plan, err := mgr.Plan(ctx, days)
			if err != nil {
				return err
			}

			// Preview
			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tDATE\tNAME\tACTION")
			for _, a := range plan.Expired {
				fmt.Fprintf(tw, "%s\t%s\t%s\tdelete\n", a.Instance, a.Date.Format("2006-01-02"), a.Name)
			}
			_ = tw.Flush()

			opts := getSafetyOptions(cmd)
			if opts.DryRun || len(plan.Expired) == 0 {
				return nil
			}
			ok, err := safety.Confirm(opts, cmd.InOrStdin(), stdout, fmt.Sprintf("Delete %d artifacts from %s?", len(plan.Expired), st))
			if err != nil || !ok {
				return err
			}
			res, err := mgr.Prune(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted %d artifacts\n", len(res.Removed))
			if len(res.Failed) > 0 {
				return errors.Errorf("%d artifacts could not be deleted", len(res.Failed))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "Days of backups to keep (defaults to keep_days from the config)")
	cmd.Flags().StringVar(&tgt, "target", "", "Backend target URI overriding the config (e.g., dir:/path)")
	return cmd
}
