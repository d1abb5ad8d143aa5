package main

import (
	"github.com/spf13/cobra"

	"postboard/internal/api"
	"postboard/internal/config"
)

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id> [<id>...]",
		Short: "Show post details",
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parsePostID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return withClient(cfg, func(client *api.Client) error {
				posts := make([]api.PostResponse, 0, len(ids))
				for _, id := range ids {
					post, err := client.GetPost(cmd.Context(), id)
					if err != nil {
						return err
					}
					posts = append(posts, post)
				}

				if len(posts) == 1 {
					if *jsonOutput {
						return writeJSON(posts[0])
					}
					return writePostDetail(posts[0])
				}
				if *jsonOutput {
					return writeJSON(posts)
				}
				return writePostList(posts)
			})
		},
	}

	return cmd
}
