package auth

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCommand creates the auth logout subcommand
func NewLogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		Long:  "Remove the stored credential record entirely. The next launch will require an interactive sign-in.",
		Example: `  # Sign out
  go-mcl auth logout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			l, err := newLauncher(stdout)
			if err != nil {
				return err
			}

			result := l.Logout()

			if isJSONMode(cmd) {
				return printJSON(stdout, result)
			}

			if !result.Success {
				return fmt.Errorf("sign-out failed: %s", result.Error)
			}

			fmt.Fprintln(stdout, "Signed out")
			return nil
		},
	}

	return cmd
}
