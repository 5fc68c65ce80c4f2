package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/service/client"
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Submit a camera image for cat detection.",
	Long: `Uploads a PNG, JPEG or GIF image to the panel server for classification.
A cat while armed at home raises the alarm; no cat while every sensor is inactive clears it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, client.ScanImage(args[0]))
	},
}
