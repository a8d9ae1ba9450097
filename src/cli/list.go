package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tenant-backup/src/retention"
)

type listEntry struct {
	Name     string `json:"name"`
	Instance string `json:"instance"`
	Date     string `json:"date"`
	Expired  bool   `json:"expired"`
}

func newListCmd(stdout, stderr io.Writer) *cobra.Command {
	var output string
	var tgt string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backup artifacts on the backup host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, stderr)
			if err != nil {
				return err
			}
			defer sess.Close()

			st, err := openStore(sess.cfg, tgt, sess.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			mgr := retention.New(retention.Config{Store: st, Clock: wallClock, Logger: sess.logger})
			plan, err := mgr.Plan(commandContext(cmd), sess.cfg.KeepDays)
			if err != nil {
				return err
			}
			entries := make([]listEntry, 0, len(plan.Kept)+len(plan.Expired))
			for _, a := range plan.Expired {
				entries = append(entries, listEntry{Name: a.Name, Instance: a.Instance, Date: a.Date.Format("2006-01-02"), Expired: true})
			}
			for _, a := range plan.Kept {
				entries = append(entries, listEntry{Name: a.Name, Instance: a.Instance, Date: a.Date.Format("2006-01-02")})
			}
			switch output {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "table", "":
				return renderTable(stdout, entries)
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	cmd.Flags().StringVar(&tgt, "target", "", "Backend target URI overriding the config (e.g., dir:/path)")
	return cmd
}

func renderTable(w io.Writer, entries []listEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE\tDATE\tRETENTION\tNAME")
	for _, e := range entries {
		state := "keep"
		if e.Expired {
			state = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Instance, e.Date, state, e.Name)
	}
	return tw.Flush()
}
