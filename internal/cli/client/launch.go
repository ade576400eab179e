package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steviee/go-mcl/internal/launch"
)

// LaunchFlags holds the flags for the launch command
type LaunchFlags struct {
	Loader        string
	LoaderVersion string
	Memory        string
	GameDir       string
	Server        string
	Port          int
}

// NewLaunchCommand creates the client launch subcommand
func NewLaunchCommand() *cobra.Command {
	flags := &LaunchFlags{}

	cmd := &cobra.Command{
		Use:   "launch <version>",
		Short: "Launch the client",
		Long: `Launch a provisioned version of the client.

The stored credentials are validated (and silently refreshed when stale)
before launch; if re-authentication is required the launch aborts and
reports it. With --server the client joins that server on startup.`,
		Example: `  # Launch a version
  go-mcl client launch 1.20.4

  # Launch with the Fabric loader and more memory
  go-mcl client launch 1.20.4 --loader fabric --memory 6G

  # Launch and join a local server
  go-mcl client launch 1.20.4 --server localhost --port 25565`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			l, err := newLauncher(stdout)
			if err != nil {
				return err
			}

			loader := loaderSpecFromFlags(flags.Loader, flags.LoaderVersion)
			result := l.Launch(cmd.Context(), args[0], loader, launch.Options{
				Memory:     flags.Memory,
				GameDir:    flags.GameDir,
				ServerHost: flags.Server,
				ServerPort: flags.Port,
			})

			if isJSONMode(cmd) {
				return printJSON(stdout, result)
			}

			if result.RequiresAuth {
				return fmt.Errorf("not signed in (run `go-mcl auth login`)")
			}
			if !result.Success {
				return fmt.Errorf("launch failed: %s", result.Error)
			}

			fmt.Fprintf(stdout, "Client %s started (PID %d)\n", result.VersionID, result.PID)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Loader, "loader", "", "Overlay a loader (currently: fabric)")
	cmd.Flags().StringVar(&flags.LoaderVersion, "loader-version", "", "Loader version (default: latest stable)")
	cmd.Flags().StringVar(&flags.Memory, "memory", "", "Heap ceiling, e.g. 4G (default from config)")
	cmd.Flags().StringVar(&flags.GameDir, "game-dir", "", "Client working directory (default: data dir)")
	cmd.Flags().StringVar(&flags.Server, "server", "", "Server host to join on startup")
	cmd.Flags().IntVar(&flags.Port, "port", 25565, "Server port for --server")

	return cmd
}
