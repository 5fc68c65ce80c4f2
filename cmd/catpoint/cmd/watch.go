package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/service/watcher"
)

var (
	// pollInterval between status checks.
	pollInterval time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Poll the panel and print every state change.",
		Long: `Polls the panel server at a fixed interval and prints the panel state whenever
arming, alarm or cat state changes. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			out := cmd.OutOrStdout()

			options := &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				PollInterval:  pollInterval,
				OnChange: func(snapshot *domain.Snapshot) {
					if err := client.PrintSnapshot(out, snapshot); err != nil {
						logger.WarnKV(ctx, "Failed to print panel state", "error", err)
					}
				},
			}

			return watcher.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	watchCmd.Flags().DurationVarP(&pollInterval, "interval", "i", watcher.DefaultPollInterval, "polling interval")
}
