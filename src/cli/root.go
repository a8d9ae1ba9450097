package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the root cobra command for the tenant-backup CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tenant-backup",
		Short:         "Snapshot tenant instances, ship the images to a backup host and prune old copies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	addGlobalFlags(cmd)

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newRunCmd(stdout, stderr))
	cmd.AddCommand(newPruneCmd(stdout, stderr))
	cmd.AddCommand(newListCmd(stdout, stderr))

	return cmd
}

// Execute runs the CLI with the process stdio and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}
