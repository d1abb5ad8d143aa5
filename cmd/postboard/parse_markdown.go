package main

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var headingRegex = regexp.MustCompile(`^#\s+(.+?)\s*#*\s*$`)

// postFrontMatter holds the YAML header of a markdown post file.
type postFrontMatter struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
	Image  string `yaml:"image"`
}

// markdownPost is a post draft read from a markdown file.
type markdownPost struct {
	Title     string
	Author    string
	Body      string
	ImagePath string
}

// parseMarkdown splits optional YAML front matter from the markdown body.
func parseMarkdown(input string) (postFrontMatter, string, error) {
	var front postFrontMatter
	content := strings.ReplaceAll(input, "\r\n", "\n")

	lines := strings.Split(content, "\n")
	if len(lines) >= 2 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end == -1 {
			return front, "", fmt.Errorf("front matter not closed")
		}
		frontText := strings.Join(lines[1:end], "\n")
		if err := yaml.Unmarshal([]byte(frontText), &front); err != nil {
			return front, "", fmt.Errorf("parse front matter: %w", err)
		}
		content = strings.Join(lines[end+1:], "\n")
	}

	return front, strings.TrimSpace(content), nil
}

// markdownToPost builds a draft from a markdown file. Without a front matter
// title, a leading "# Heading" becomes the title and is dropped from the body.
// A relative image path is resolved against the file's directory.
func markdownToPost(input, filePath string) (markdownPost, error) {
	front, body, err := parseMarkdown(input)
	if err != nil {
		return markdownPost{}, err
	}

	post := markdownPost{
		Title:  strings.TrimSpace(front.Title),
		Author: strings.TrimSpace(front.Author),
		Body:   body,
	}

	if post.Title == "" {
		first, rest, _ := strings.Cut(body, "\n")
		if match := headingRegex.FindStringSubmatch(strings.TrimSpace(first)); len(match) == 2 {
			post.Title = match[1]
			post.Body = strings.TrimSpace(rest)
		}
	}

	if image := strings.TrimSpace(front.Image); image != "" {
		if !filepath.IsAbs(image) {
			image = filepath.Join(filepath.Dir(filePath), image)
		}
		post.ImagePath = image
	}

	if post.Title == "" {
		return markdownPost{}, fmt.Errorf("%s: no title in front matter or leading heading", filePath)
	}
	return post, nil
}
