package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// serverAddress overrides the server address from configuration.
	serverAddress string
	// logLevel overrides the default log level.
	logLevel string

	// rootCmd represents the base command for talking to the panel server.
	rootCmd = &cobra.Command{
		Use:   "catpoint",
		Short: "Control the catpoint security panel.",
		Long: `Command line client for the catpoint security panel.

Arms and disarms the system, manages sensors, submits camera images for cat
detection and prints the resulting panel state after every call.
Server address and timeout come from the configuration file unless overridden.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if logLevel == "" {
				return nil
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("invalid log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the catpoint CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runOperation performs a single panel call with signal handling and prints the result.
func runOperation(cmd *cobra.Command, operation client.Operation) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	options := &client.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Out:           cmd.OutOrStdout(),
	}

	return client.Run(ctx, options, operation)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "a", "", "panel server address, overrides configuration")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(statusCmd, armCmd, disarmCmd, sensorCmd, scanCmd, watchCmd)
}
