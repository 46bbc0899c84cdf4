package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/playerwatch/internal/config"
	"github.com/mcoot/playerwatch/internal/daemon"
)

func newStartCmd() *cobra.Command {
	var noAPI bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the poller and the query API until interrupted",
		Long: `Run the polling scheduler in the foreground. Configuration is read from the
environment and an optional .env file (BM_API_TOKEN, BM_SERVER_ID, DATABASE_URL, ...).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := daemon.NewLogger(appCfg.Log, os.Stdout)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return daemon.Run(ctx, appCfg, logger, !noAPI)
		},
	}

	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Poll only, without serving the HTTP API")

	return cmd
}
