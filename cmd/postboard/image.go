package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"postboard/internal/api"
	"postboard/internal/config"
)

func newImageCmd(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "image <key>",
		Short: "Download a post image by its reference",
		Args:  requireExactlyArgs(1, "image reference is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if outPath == "" || outPath == "-" {
					_, _, err := client.GetImage(cmd.Context(), args[0], os.Stdout)
					return err
				}
				return downloadImage(cmd, client, args[0], outPath)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "O", "", "write the image to a file instead of stdout")
	return cmd
}

// downloadImage writes into a temp file next to outPath and renames it into
// place once the body has been fully read.
func downloadImage(cmd *cobra.Command, client *api.Client, key, outPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".postboard-image-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	contentType, n, err := client.GetImage(cmd.Context(), key, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes (%s) to %s\n", n, contentType, outPath)
	return err
}
