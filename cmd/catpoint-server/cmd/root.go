package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/service/server"
	"github.com/oshokin/catpoint/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile overrides where the file backend persists panel state.
	stateFile string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the panel server.
	rootCmd = &cobra.Command{
		Use:   "catpoint-server [listen-address]",
		Short: "Run the catpoint security panel server.",
		Long: `Starts the gRPC panel server that owns arming, alarm and sensor state.

The server listens on the specified address or uses settings from configuration file.
Only the port from server_addr config is used for listening (e.g., :50051).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:8080).
State is kept in memory, a JSON file, Redis or SQLite depending on the storage backend.
When configured, sensor and arming commands are also accepted over MQTT and
Prometheus metrics are served on /metrics.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				LogLevel:      logLevel,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the catpoint-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", "", "path to persist panel state (file backend only)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
}
