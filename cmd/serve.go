package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled leaderboard refresh",
		Long: `Starts the HTTP surface (liveness, health checks, metrics and the /v1 command
routes) and the refresh coordinator. The leaderboard is republished on
startup, on every refresh.interval tick, and after each successful add.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Run(cmd.Context()) //nolint:wrapcheck // App.Run already wraps
		},
	}
}
