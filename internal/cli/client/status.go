package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the client status subcommand
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the client is running",
		Long: `Probe the tracked client process.

The probe signals the recorded process id without delivering anything; a
process that no longer exists clears the stored handle.`,
		Example: `  # Show client status
  go-mcl client status

  # JSON output for scripting
  go-mcl client status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			l, err := newLauncher(stdout)
			if err != nil {
				return err
			}

			result := l.Status()

			if isJSONMode(cmd) {
				return printJSON(stdout, result)
			}

			if result.Running {
				fmt.Fprintf(stdout, "Client running (PID %d)\n", result.PID)
			} else {
				fmt.Fprintln(stdout, "Client not running")
			}

			return nil
		},
	}

	return cmd
}
