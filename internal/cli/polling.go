package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/playerwatch/internal/api/response"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one polling cycle now and wait for it to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.PollingCycle

			if err := client.Post(cmd.Context(), "/polling/trigger", nil, &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show polling statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result StatsResult

			if err := client.Get(cmd.Context(), "/polling/summary", hoursQuery(hours), &result.Summary); err != nil {
				return err
			}
			if err := client.Get(cmd.Context(), "/polling/stats", hoursQuery(hours), &result.Cycles); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "Window to report on, in hours")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the polling scheduler status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.SchedulerStatus

			if err := client.Get(cmd.Context(), "/polling/status", nil, &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}
