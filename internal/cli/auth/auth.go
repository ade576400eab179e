// Package auth implements the "go-mcl auth" command group.
package auth

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	authcore "github.com/steviee/go-mcl/internal/auth"
	"github.com/steviee/go-mcl/internal/launcher"
)

// NewCommand creates the auth command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage launcher credentials",
		Long: `Manage the stored launcher credentials.

Sign-in runs the delegated-authorization chain interactively; afterwards the
launcher refreshes the resulting token silently until the hard expiry, at
which point sign-in is required again.`,
		Example: `  # Sign in interactively
  go-mcl auth login

  # Show the stored account and token age
  go-mcl auth status

  # Force a silent refresh
  go-mcl auth status --refresh

  # Sign out and clear stored credentials
  go-mcl auth logout`,
	}

	cmd.AddCommand(NewLoginCommand())
	cmd.AddCommand(NewLogoutCommand())
	cmd.AddCommand(NewStatusCommand())

	return cmd
}

// newLauncher constructs the launcher facade with an interactive device
// code prompt writing to stdout.
func newLauncher(stdout io.Writer) (*launcher.Launcher, error) {
	return launcher.New(&launcher.Config{
		Prompt: func(p authcore.DeviceCodePrompt) {
			fmt.Fprintf(stdout, "To sign in, visit %s and enter the code %s\n",
				p.VerificationURI, p.UserCode)
		},
	})
}

// isJSONMode reports whether the root --json flag is set.
func isJSONMode(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON output: %w", err)
	}
	return nil
}
