package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStopCommand creates the client stop subcommand
func NewStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running client",
		Long: `Stop the tracked client process.

A graceful termination signal is sent first; if the client has not exited
after the grace period it is killed.`,
		Example: `  # Stop the client
  go-mcl client stop`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			l, err := newLauncher(stdout)
			if err != nil {
				return err
			}

			result := l.Stop(cmd.Context())

			if isJSONMode(cmd) {
				return printJSON(stdout, result)
			}

			if !result.Success {
				return fmt.Errorf("stop failed: %s", result.Error)
			}

			fmt.Fprintln(stdout, "Client stopped")
			return nil
		},
	}

	return cmd
}
