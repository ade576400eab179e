package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	authcmd "github.com/steviee/go-mcl/internal/cli/auth"
	clientcmd "github.com/steviee/go-mcl/internal/cli/client"
)

var (
	// Global flags
	cfgFile string
	jsonOut bool
	quiet   bool
	verbose bool

	// Global logger
	logger *slog.Logger
)

// NewRootCommand creates and returns the root cobra command
func NewRootCommand(version, commit, date, builtBy string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "go-mcl",
		Short: "Provision, authenticate and launch the Minecraft client",
		Long: `go-mcl is a CLI launcher for the Minecraft client, built to pair with a
locally managed server.

It provides:
  - Delegated-authorization sign-in with silent token refresh
  - Version provisioning with optional Fabric loader overlay
  - Idempotent download of libraries, assets and native binaries
  - Launching, stopping and probing the client process`,
		Example: `  # Sign in interactively
  go-mcl auth login

  # Provision a version with the Fabric loader
  go-mcl client provision 1.20.4 --loader fabric

  # Launch against a local server
  go-mcl client launch 1.20.4 --server localhost --memory 4G

  # Check whether the client is running
  go-mcl client status`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logger based on flags
			if err := initLogger(cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			// Initialize config
			if err := initConfig(); err != nil {
				logger.Error("failed to initialize config", "error", err)
				return fmt.Errorf("failed to initialize config: %w", err)
			}

			return nil
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/go-mcl/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")

	rootCmd.MarkFlagsMutuallyExclusive("json", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Add version command
	rootCmd.AddCommand(NewVersionCommand(version, commit, date, builtBy))

	// Add command groups
	rootCmd.AddCommand(authcmd.NewCommand())
	rootCmd.AddCommand(clientcmd.NewCommand())

	return rootCmd
}

// initLogger initializes the global logger based on flags
func initLogger(out io.Writer) error {
	var level slog.Level
	var handler slog.Handler

	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if jsonOut {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)

	return nil
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get user home directory: %w", err)
		}

		configDir := filepath.Join(home, ".config", "go-mcl")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("GOMCL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config file: %w", err)
		}
	} else {
		logger.Debug("using config file", "path", viper.ConfigFileUsed())
	}

	return nil
}

// GetLogger returns the global logger instance
func GetLogger() *slog.Logger {
	return logger
}

// IsJSONOutput returns true if JSON output is enabled
func IsJSONOutput() bool {
	return jsonOut
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quiet
}

// IsVerbose returns true if verbose logging is enabled
func IsVerbose() bool {
	return verbose
}
