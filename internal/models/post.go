package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Post is the stored record of one board post.
type Post struct {
	ID        int64
	Title     string
	Body      string
	Author    string
	Score     int64
	ImageKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasImage reports whether an image blob is attached.
func (p Post) HasImage() bool {
	return p.ImageKey != ""
}

// ValidationError reports a post field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// ValidatePost checks the fields a post must satisfy before it is stored.
func ValidatePost(title, body string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if utf8.RuneCountInString(title) > TitleMaxLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", TitleMaxLength)}
	}
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Field: "body", Message: "is required"}
	}
	return nil
}

// NormalizeAuthor trims author and falls back to DefaultAuthor.
func NormalizeAuthor(author string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return DefaultAuthor
	}
	return author
}
