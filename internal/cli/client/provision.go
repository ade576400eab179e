package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ProvisionFlags holds the flags for the provision command
type ProvisionFlags struct {
	Loader        string
	LoaderVersion string
}

// NewProvisionCommand creates the client provision subcommand
func NewProvisionCommand() *cobra.Command {
	flags := &ProvisionFlags{}

	cmd := &cobra.Command{
		Use:   "provision <version>",
		Short: "Download everything a version needs to launch",
		Long: `Resolve a version descriptor (optionally merged with a loader descriptor),
download the client jar, every library, the asset index and all asset
objects, and stage the platform-native libraries.

Files already present with the expected size are skipped, so re-running
provision resumes an interrupted download instead of starting over. A
failed item is reported but does not abort the rest.`,
		Example: `  # Provision a vanilla version
  go-mcl client provision 1.20.4

  # Provision the latest release
  go-mcl client provision latest

  # Provision with a specific Fabric loader
  go-mcl client provision 1.20.4 --loader fabric --loader-version 0.16.9`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			l, err := newLauncher(stdout)
			if err != nil {
				return err
			}

			loader := loaderSpecFromFlags(flags.Loader, flags.LoaderVersion)
			result := l.Provision(cmd.Context(), args[0], loader)

			if isJSONMode(cmd) {
				return printJSON(stdout, result)
			}

			if !result.Success {
				return fmt.Errorf("provisioning failed: %s", result.Error)
			}

			fmt.Fprintf(stdout, "Provisioned %s: %d downloaded, %d already present, %d natives staged\n",
				result.VersionID, result.Downloaded, result.Skipped, result.Extracted)
			for _, itemErr := range result.ItemErrors {
				fmt.Fprintf(stdout, "  failed: %s\n", itemErr)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Loader, "loader", "", "Overlay a loader (currently: fabric)")
	cmd.Flags().StringVar(&flags.LoaderVersion, "loader-version", "", "Loader version (default: latest stable)")

	return cmd
}
