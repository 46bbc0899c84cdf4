package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "playerwatch",
		Short: "Track BattleMetrics players on a game server",
		Long: `playerwatch polls a BattleMetrics game server on a fixed interval and records
whether each tracked player is online, their current session and any name changes.

"playerwatch start" runs the poller and its query API; the other commands talk to
a running instance over HTTP.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			client = NewClient(cfg.ServerURL)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfg.ServerURL, "server", "s", cfg.ServerURL, "Server URL (env: PLAYERWATCH_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newPollCmd())
	rootCmd.AddCommand(newAddPlayerCmd())
	rootCmd.AddCommand(newRemovePlayerCmd())
	rootCmd.AddCommand(newPlayersCmd())
	rootCmd.AddCommand(newNamesCmd())
	rootCmd.AddCommand(newActivityCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr()).PrintError(err)
		os.Exit(1)
	}
}
