package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"postboard/internal/models"
)

const postColumns = `id, title, body, author, score, image_key, created_at, updated_at`

// CreatePost inserts a post with a zero score and returns the stored record.
func (s *Store) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	if post == nil {
		return nil, fmt.Errorf("post is required")
	}
	if err := models.ValidatePost(post.Title, post.Body); err != nil {
		return nil, err
	}

	now := post.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var created *models.Post
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `
			INSERT INTO posts (title, body, author, score, image_key, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?, ?)
			RETURNING `+postColumns,
			strings.TrimSpace(post.Title),
			post.Body,
			models.NormalizeAuthor(post.Author),
			nullIfEmpty(post.ImageKey),
			formatTime(now),
			formatTime(now),
		)
		var err error
		created, err = scanPost(row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return created, nil
}

// ListPosts returns every post in insertion order.
func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			post, err := scanPost(rows)
			if err != nil {
				return err
			}
			posts = append(posts, *post)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// GetPost returns a post by id, or nil when it does not exist.
func (s *Store) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var post *models.Post
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
		var err error
		post, err = scanPost(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return post, nil
}

// AdjustScore adds delta to the post score in one UPDATE statement.
func (s *Store) AdjustScore(ctx context.Context, id int64, delta int) (*models.Post, error) {
	if !models.IsValidScoreDelta(delta) {
		return nil, &models.ValidationError{Field: "delta", Message: "must be +1 or -1"}
	}

	var post *models.Post
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `
			UPDATE posts SET score = score + ?, updated_at = ?
			WHERE id = ?
			RETURNING `+postColumns,
			delta, formatTime(time.Now()), id,
		)
		var err error
		post, err = scanPost(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("adjust score for post %d: %w", id, err)
	}
	return post, nil
}

// StoreInfo reports schema version and aggregate post counts.
func (s *Store) StoreInfo(ctx context.Context) (StoreInfo, error) {
	info := StoreInfo{Driver: DriverSQLite}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&info.SchemaVersion); err != nil {
			return err
		}
		return conn.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(score), 0) FROM posts").Scan(&info.TotalPosts, &info.TotalScore)
	})
	if err != nil {
		return StoreInfo{}, fmt.Errorf("store info: %w", err)
	}
	return info, nil
}

func scanPost(scanner interface {
	Scan(dest ...any) error
}) (*models.Post, error) {
	var post models.Post
	var imageKey sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&post.ID,
		&post.Title,
		&post.Body,
		&post.Author,
		&post.Score,
		&imageKey,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if post.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if post.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if imageKey.Valid {
		post.ImageKey = imageKey.String
	}
	return &post, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
