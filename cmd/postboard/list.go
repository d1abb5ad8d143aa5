package main

import (
	"github.com/spf13/cobra"

	"postboard/internal/api"
	"postboard/internal/config"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				posts, err := client.ListPosts(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(posts)
				}
				if len(posts) == 0 {
					return writePlain("no posts yet\n")
				}
				return writePostList(posts)
			})
		},
	}
}
