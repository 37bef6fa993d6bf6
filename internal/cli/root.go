// Package cli implements sigmarctl, an operator tool for the services API.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"sigmarservicos.com.br/sigmar-web/internal/backend"
	"sigmarservicos.com.br/sigmar-web/internal/config"
)

var version = "dev"

var (
	backendURL     string
	backendTimeout time.Duration
	// newClient is replaced in tests.
	newClient = func(baseURL string, timeout time.Duration) *backend.Client {
		return backend.NewClient(baseURL, backend.WithTimeout(timeout))
	}
)

var rootCmd = &cobra.Command{
	Use:           "sigmarctl",
	Short:         "Inspect and exercise the Sr. Sigmar services API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("backend") {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		backendURL = cfg.Backend.BaseURL
		if !cmd.Flags().Changed("timeout") {
			backendTimeout = cfg.Backend.Timeout
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "services API base URL (default from SIGMAR_BACKEND_URL)")
	rootCmd.PersistentFlags().DurationVar(&backendTimeout, "timeout", 8*time.Second, "request timeout")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func client() *backend.Client {
	return newClient(backendURL, backendTimeout)
}
