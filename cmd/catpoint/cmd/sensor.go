package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/service/client"
)

var (
	sensorCmd = &cobra.Command{
		Use:   "sensor",
		Short: "Manage door, window and motion sensors.",
	}

	sensorAddCmd = &cobra.Command{
		Use:   "add <name> <door|window|motion>",
		Short: "Register a new inactive sensor.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sensorType, err := domain.ParseSensorType(args[1])
			if err != nil {
				return err
			}

			return runOperation(cmd, client.AddSensor(domain.NewSensor(args[0], sensorType)))
		},
	}

	sensorRemoveCmd = &cobra.Command{
		Use:   "remove <name>",
		Short: "Unregister a sensor.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, client.RemoveSensor(args[0]))
		},
	}

	sensorActivateCmd = &cobra.Command{
		Use:   "activate <name>",
		Short: "Report that a sensor was tripped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, client.ChangeSensorActivation(args[0], true))
		},
	}

	sensorDeactivateCmd = &cobra.Command{
		Use:   "deactivate <name>",
		Short: "Report that a sensor went quiet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, client.ChangeSensorActivation(args[0], false))
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	sensorCmd.AddCommand(sensorAddCmd, sensorRemoveCmd, sensorActivateCmd, sensorDeactivateCmd)
}
