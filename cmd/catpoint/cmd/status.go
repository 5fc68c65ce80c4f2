package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/service/client"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print arming, alarm, cat and sensor state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOperation(cmd, client.Status())
		},
	}

	armCmd = &cobra.Command{
		Use:       "arm <home|away>",
		Short:     "Arm the system at home or away.",
		Long:      `Arms the system. Arming resets every sensor to inactive; arming at home while a cat is on camera raises the alarm.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"home", "away"},
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParseArmingStatus(args[0])
			if err != nil {
				return err
			}

			if status == domain.ArmingDisarmed {
				return fmt.Errorf("%w: use the disarm command", domain.ErrInvalidArmingStatus)
			}

			return runOperation(cmd, client.SetArmingStatus(status))
		},
	}

	disarmCmd = &cobra.Command{
		Use:   "disarm",
		Short: "Disarm the system and clear the alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOperation(cmd, client.SetArmingStatus(domain.ArmingDisarmed))
		},
	}
)
