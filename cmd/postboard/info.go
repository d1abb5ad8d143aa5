package main

import (
	"github.com/spf13/cobra"

	"postboard/internal/api"
	"postboard/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show storage backends and board totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("api_url: %s\n", cfg.APIURL)
				_ = writePlain("store_driver: %s\n", resp.StoreDriver)
				_ = writePlain("blob_backend: %s\n", resp.BlobBackend)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("total_posts: %d\n", resp.TotalPosts)
				_ = writePlain("total_score: %d\n", resp.TotalScore)
				return writePlain("max_upload_bytes: %d\n", resp.MaxUploadBytes)
			})
		},
	}
	return cmd
}
