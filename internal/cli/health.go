package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the backend health endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := client().Health(context.Background())
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		cmd.Printf("%s: %s\n", h.Status, h.Message)
		if !h.Healthy() {
			return fmt.Errorf("backend reports %q", h.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
