package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"postboard/internal/api"
	"postboard/internal/config"
)

type createCmdOptions struct {
	body      string
	author    string
	imagePath string
	filePath  string
}

func newCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &createCmdOptions{}
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new post",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, cfg, opts, jsonOutput, args)
		},
	}

	bindCreateFlags(cmd, opts)
	return cmd
}

func bindCreateFlags(cmd *cobra.Command, opts *createCmdOptions) {
	cmd.Flags().StringVarP(&opts.body, "body", "b", "", "post body (\"-\" reads stdin)")
	cmd.Flags().StringVarP(&opts.author, "author", "a", "", "author name (default anonymous)")
	cmd.Flags().StringVarP(&opts.imagePath, "image", "i", "", "image file to attach")
	cmd.Flags().StringVarP(&opts.filePath, "file", "f", "", "markdown file with optional YAML front matter")
}

func runCreate(cmd *cobra.Command, cfg *config.Config, opts *createCmdOptions, jsonOutput *bool, args []string) error {
	req, imagePath, err := buildCreateRequest(cmd.InOrStdin(), opts, args)
	if err != nil {
		return err
	}

	return withClient(cfg, func(client *api.Client) error {
		resp, err := submitPost(cmd.Context(), client, req, imagePath)
		if err != nil {
			return err
		}
		if *jsonOutput {
			return writeJSON(resp)
		}
		return writePlain("%d\n", resp.ID)
	})
}

// buildCreateRequest merges a markdown file with flags and arguments. Flags
// and arguments win over values read from the file.
func buildCreateRequest(stdin io.Reader, opts *createCmdOptions, args []string) (api.PostCreateRequest, string, error) {
	req := api.PostCreateRequest{}
	imagePath := ""

	if opts.filePath != "" {
		data, err := os.ReadFile(opts.filePath)
		if err != nil {
			return req, "", err
		}
		draft, err := markdownToPost(string(data), opts.filePath)
		if err != nil {
			return req, "", err
		}
		req.Title, req.Body, req.Author = draft.Title, draft.Body, draft.Author
		imagePath = draft.ImagePath
	}

	if len(args) > 0 {
		req.Title = strings.Join(args, " ")
	}
	if opts.body == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return req, "", err
		}
		req.Body = strings.TrimSpace(string(data))
	} else if opts.body != "" {
		req.Body = opts.body
	}
	if opts.author != "" {
		req.Author = opts.author
	}
	if opts.imagePath != "" {
		imagePath = opts.imagePath
	}

	if strings.TrimSpace(req.Title) == "" {
		return req, "", errors.New("title is required")
	}
	return req, imagePath, nil
}

// submitPost sends the post as JSON, or as a multipart upload when an image
// file is attached.
func submitPost(ctx context.Context, client *api.Client, req api.PostCreateRequest, imagePath string) (api.PostResponse, error) {
	if imagePath == "" {
		return client.CreatePost(ctx, req)
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return api.PostResponse{}, err
	}
	defer f.Close()

	return client.CreatePostMultipart(ctx, req, filepath.Base(imagePath), f)
}
