package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postboard/internal/models"
)

const (
	DriverPostgres = "postgres"

	// Arbitrary constant shared by every postboard process migrating one database.
	pgMigrationLockID       = 7_333_001
	pgStatementCacheSize    = 256
	defaultPGConnectTimeout = 10 * time.Second
)

// PGOptions tunes the PostgreSQL connection pool.
type PGOptions struct {
	MaxConns int32
	// SkipMigrations leaves the schema untouched, for inspection.
	SkipMigrations bool
}

// PGStore is the PostgreSQL post repository.
type PGStore struct {
	pool *pgxpool.Pool
}

// postgresMigrations mirrors sqliteMigrations version-for-version.
var postgresMigrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: posts table",
		SQL: `
CREATE TABLE IF NOT EXISTS posts (
  id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  title VARCHAR(100) NOT NULL CHECK (char_length(title) > 0),
  body TEXT NOT NULL CHECK (char_length(body) > 0),
  author TEXT NOT NULL DEFAULT 'anonymous',
  score BIGINT NOT NULL DEFAULT 0,
  image_key TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	},
	{
		Version:     2,
		Description: "index posts by attached image",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_posts_image_key ON posts(image_key) WHERE image_key IS NOT NULL`,
	},
}

// OpenPostgres connects a pool to dsn and applies pending migrations unless
// opts.SkipMigrations is set.
func OpenPostgres(ctx context.Context, dsn string, opts PGOptions) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	cfg.ConnConfig.StatementCacheCapacity = pgStatementCacheSize
	if cfg.ConnConfig.ConnectTimeout == 0 {
		cfg.ConnConfig.ConnectTimeout = defaultPGConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	st := &PGStore{pool: pool}
	if opts.SkipMigrations {
		return st, nil
	}
	if err := st.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

// Close releases every pooled connection.
func (s *PGStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// withConn runs fn on one acquired connection and always releases it.
func (s *PGStore) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store is not open")
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// CreatePost inserts a post with a zero score and returns the stored record.
func (s *PGStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
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
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
			INSERT INTO posts (title, body, author, score, image_key, created_at, updated_at)
			VALUES ($1, $2, $3, 0, $4, $5, $5)
			RETURNING `+postColumns,
			strings.TrimSpace(post.Title),
			post.Body,
			models.NormalizeAuthor(post.Author),
			nullIfEmpty(post.ImageKey),
			now,
		)
		var err error
		created, err = scanPGPost(row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return created, nil
}

// ListPosts returns every post in insertion order.
func (s *PGStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY id ASC`)
		if err != nil {
			return err
		}
		posts, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Post, error) {
			post, err := scanPGPost(row)
			if err != nil {
				return models.Post{}, err
			}
			return *post, nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// GetPost returns a post by id, or nil when it does not exist.
func (s *PGStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var post *models.Post
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		post, err = scanPGPost(conn.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return post, nil
}

// AdjustScore adds delta to the post score in one UPDATE statement.
func (s *PGStore) AdjustScore(ctx context.Context, id int64, delta int) (*models.Post, error) {
	if !models.IsValidScoreDelta(delta) {
		return nil, &models.ValidationError{Field: "delta", Message: "must be +1 or -1"}
	}

	var post *models.Post
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
			UPDATE posts SET score = score + $1, updated_at = now()
			WHERE id = $2
			RETURNING `+postColumns,
			int64(delta), id,
		)
		var err error
		post, err = scanPGPost(row)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("adjust score for post %d: %w", id, err)
	}
	return post, nil
}

// StoreInfo reports schema version and aggregate post counts.
func (s *PGStore) StoreInfo(ctx context.Context) (StoreInfo, error) {
	info := StoreInfo{Driver: DriverPostgres}
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		if err := conn.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&info.SchemaVersion); err != nil {
			return err
		}
		return conn.QueryRow(ctx, "SELECT COUNT(*), COALESCE(SUM(score), 0)::BIGINT FROM posts").Scan(&info.TotalPosts, &info.TotalScore)
	})
	if err != nil {
		return StoreInfo{}, fmt.Errorf("store info: %w", err)
	}
	return info, nil
}

// MigrationPlan returns the current PostgreSQL migration status without applying anything.
func (s *PGStore) MigrationPlan(ctx context.Context) (*MigrationStatus, error) {
	var current int
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		// A database that was never migrated has no tracking table yet.
		var tracked bool
		if err := conn.QueryRow(ctx, "SELECT to_regclass('schema_migrations') IS NOT NULL").Scan(&tracked); err != nil {
			return err
		}
		if !tracked {
			return nil
		}
		return conn.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	})
	if err != nil {
		return nil, fmt.Errorf("inspect migrations: %w", err)
	}
	return planFrom(current, postgresMigrations), nil
}

const pgMigrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// runMigrations applies pending migrations under a session advisory lock so
// several server processes can start against one database.
func (s *PGStore) runMigrations(ctx context.Context) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", int64(pgMigrationLockID)); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", int64(pgMigrationLockID))
		}()

		if _, err := conn.Exec(ctx, pgMigrationsTableSQL); err != nil {
			return fmt.Errorf("create migrations table: %w", err)
		}
		var current int
		if err := conn.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
			return fmt.Errorf("get current version: %w", err)
		}

		for _, m := range sortedMigrations(postgresMigrations) {
			if m.Version <= current {
				continue
			}
			err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
				if _, err := tx.Exec(ctx, m.SQL); err != nil {
					return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
				}
				if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
					return fmt.Errorf("record migration %d: %w", m.Version, err)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func scanPGPost(row pgx.Row) (*models.Post, error) {
	var post models.Post
	var imageKey *string
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Body,
		&post.Author,
		&post.Score,
		&imageKey,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if imageKey != nil {
		post.ImageKey = *imageKey
	}
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return &post, nil
}
