package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	authcore "github.com/steviee/go-mcl/internal/auth"
)

// StatusFlags holds the flags for the status command
type StatusFlags struct {
	Refresh bool
}

// NewStatusCommand creates the auth status subcommand
func NewStatusCommand() *cobra.Command {
	flags := &StatusFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored account and token state",
		Long: `Show the stored account, the token age, and whether the token is inside
its trust window. With --refresh, a silent refresh is attempted even for a
fresh token.`,
		Example: `  # Show account status
  go-mcl auth status

  # Force a silent refresh
  go-mcl auth status --refresh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			l, err := newLauncher(stdout)
			if err != nil {
				return err
			}

			result := l.EnsureValid(cmd.Context(), flags.Refresh)

			if isJSONMode(cmd) {
				return printJSON(stdout, result)
			}

			if result.RequiresAuth {
				fmt.Fprintln(stdout, "Not signed in (run `go-mcl auth login`)")
				return nil
			}
			if !result.Success {
				return fmt.Errorf("credential check failed: %s", result.Error)
			}

			rec, err := l.CurrentAccount()
			if err != nil {
				if errors.Is(err, authcore.ErrNoCredentials) {
					fmt.Fprintln(stdout, "Not signed in (run `go-mcl auth login`)")
					return nil
				}
				return err
			}

			age := rec.Age(time.Now())
			fmt.Fprintf(stdout, "Signed in as %s (%s)\n", rec.PlayerName, rec.PlayerID)
			fmt.Fprintf(stdout, "Token age: %d days\n", int(age.Hours()/24))
			switch {
			case result.Refreshed:
				fmt.Fprintln(stdout, "Token refreshed")
			case result.UsedCache:
				fmt.Fprintln(stdout, "Using cached token (refresh unavailable)")
			default:
				fmt.Fprintln(stdout, "Token fresh, no refresh needed")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.Refresh, "refresh", false, "Force a silent token refresh")

	return cmd
}
