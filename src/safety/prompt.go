package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Options are the global safety switches of the CLI.
type Options struct {
	DryRun bool
	Yes    bool
}

// Confirm prompts the user to confirm a destructive action.
// - If opts.DryRun is true, it returns false without prompting.
// - If opts.Yes is true, it returns true without prompting.
// Anything but y or yes on the first input line declines.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	if in == nil {
		return false, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}
