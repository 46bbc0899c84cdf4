package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/playerwatch/internal/api/request"
	"github.com/mcoot/playerwatch/internal/api/response"
)

func newPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List tracked players and their latest status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.PlayerStatus

			if err := client.Get(cmd.Context(), "/players", nil, &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}

func newAddPlayerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-player <name>",
		Short: "Start tracking a player by their BattleMetrics name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// names may contain spaces and arrive unquoted
			req := request.AddPlayerRequest{Name: strings.Join(args, " ")}
			var result response.Player

			if err := client.Post(cmd.Context(), "/players", req, &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}

func newRemovePlayerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-player <id>",
		Short: "Stop tracking a player; their history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlayerID(args[0])
			if err != nil {
				return err
			}

			if err := client.Delete(cmd.Context(), fmt.Sprintf("/players/%d", id)); err != nil {
				return err
			}

			newOutput(cmd).PrintMessage(fmt.Sprintf("Stopped tracking player %d", id))
			return nil
		},
	}
}

func newNamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names <id>",
		Short: "Show a player's name history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlayerID(args[0])
			if err != nil {
				return err
			}

			var result []response.NameChange
			if err := client.Get(cmd.Context(), fmt.Sprintf("/players/%d/names", id), nil, &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}
}

func newActivityCmd() *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "activity <id>",
		Short: "Summarise a player's recent activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePlayerID(args[0])
			if err != nil {
				return err
			}

			var result response.Activity
			if err := client.Get(cmd.Context(), fmt.Sprintf("/players/%d/activity", id), hoursQuery(hours), &result); err != nil {
				return err
			}

			newOutput(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "Window to summarise, in hours")

	return cmd
}

func parsePlayerID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid player id %q", arg)
	}
	return id, nil
}
