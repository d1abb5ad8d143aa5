package main

import (
	"github.com/spf13/cobra"

	"postboard/internal/api"
	"postboard/internal/config"
	"postboard/internal/models"
)

func newVoteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <id> <up|down>",
		Short: "Upvote or downvote a post",
		Args:  requireExactlyArgs(2, "usage: vote <id> <up|down>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePostID(args[0])
			if err != nil {
				return err
			}
			direction, err := models.ParseVoteDirection(args[1])
			if err != nil {
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				post, err := client.Vote(cmd.Context(), id, string(direction))
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(post)
				}
				return writePlain("%s\n", formatPostLine(post))
			})
		},
	}
}
