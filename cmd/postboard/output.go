package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"postboard/internal/api"
	"postboard/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writePostList(posts []api.PostResponse) error {
	for _, post := range posts {
		if err := writePlain("%s\n", formatPostLine(post)); err != nil {
			return err
		}
	}
	return nil
}

func writePostDetail(post api.PostResponse) error {
	lines := []string{
		fmt.Sprintf("id: %d", post.ID),
		fmt.Sprintf("title: %s", post.Title),
		fmt.Sprintf("author: %s", post.Author),
		fmt.Sprintf("score: %d", post.Score),
		fmt.Sprintf("created_at: %s", formatTime(post.CreatedAt)),
	}
	if post.ImageReference != "" {
		lines = append(lines, fmt.Sprintf("image: %s", post.ImageReference))
	}
	lines = append(lines, "", post.Body)

	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatPostLine(post api.PostResponse) string {
	line := fmt.Sprintf("#%d [%+d] %s (by %s)", post.ID, post.Score, post.Title, post.Author)
	if post.ImageReference != "" {
		line += " [img]"
	}
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
