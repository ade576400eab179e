package auth

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLoginCommand creates the auth login subcommand
func NewLoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in interactively",
		Long: `Sign in by running the delegated-authorization chain.

A device code is displayed; open the verification page in a browser, enter
the code, and the launcher completes the remaining hops and stores the
resulting credentials.`,
		Example: `  # Sign in
  go-mcl auth login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			l, err := newLauncher(stdout)
			if err != nil {
				return err
			}

			result := l.Authenticate(cmd.Context())

			if isJSONMode(cmd) {
				return printJSON(stdout, result)
			}

			if !result.Success {
				return fmt.Errorf("sign-in failed: %s", result.Error)
			}

			fmt.Fprintf(stdout, "Signed in as %s (%s)\n", result.PlayerName, result.PlayerID)
			return nil
		},
	}

	return cmd
}
