// Package client implements the "go-mcl client" command group.
package client

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	authcore "github.com/steviee/go-mcl/internal/auth"
	"github.com/steviee/go-mcl/internal/launcher"
	"github.com/steviee/go-mcl/internal/meta"
)

// NewCommand creates the client command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Provision and run the Minecraft client",
		Long: `Provision game versions and manage the client process.

Provisioning resolves a version (optionally overlaid with the Fabric
loader), downloads every referenced file idempotently, and stages the
platform-native libraries. Launching builds the process invocation from the
resolved profile and the stored credentials.`,
		Example: `  # Provision a vanilla version
  go-mcl client provision 1.20.4

  # Provision with the Fabric loader
  go-mcl client provision 1.20.4 --loader fabric

  # Launch and join a local server
  go-mcl client launch 1.20.4 --server localhost --port 25565

  # Stop the running client
  go-mcl client stop`,
	}

	cmd.AddCommand(NewProvisionCommand())
	cmd.AddCommand(NewLaunchCommand())
	cmd.AddCommand(NewStopCommand())
	cmd.AddCommand(NewStatusCommand())

	return cmd
}

// newLauncher constructs the launcher facade shared by the subcommands.
func newLauncher(stdout io.Writer) (*launcher.Launcher, error) {
	return launcher.New(&launcher.Config{
		Prompt: func(p authcore.DeviceCodePrompt) {
			fmt.Fprintf(stdout, "To sign in, visit %s and enter the code %s\n",
				p.VerificationURI, p.UserCode)
		},
	})
}

// loaderSpecFromFlags builds the optional loader spec.
func loaderSpecFromFlags(loaderName, loaderVersion string) *meta.LoaderSpec {
	if loaderName == "" {
		return nil
	}
	return &meta.LoaderSpec{Name: loaderName, Version: loaderVersion}
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
