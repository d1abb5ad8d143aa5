package store

import (
	"context"

	"postboard/internal/models"
)

// PostStore abstracts post storage backends.
//
// AdjustScore must apply the delta as a single statement evaluated by the
// storage engine so concurrent votes on one post are never lost. Lookups that
// match no row return a nil post and a nil error.
type PostStore interface {
	CreatePost(ctx context.Context, post *models.Post) (*models.Post, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	AdjustScore(ctx context.Context, id int64, delta int) (*models.Post, error)
	StoreInfo(ctx context.Context) (StoreInfo, error)
	Close() error
}

// Migrator is implemented by stores that track a schema version.
type Migrator interface {
	MigrationPlan(ctx context.Context) (*MigrationStatus, error)
}

// StoreInfo summarizes backend state for the info endpoint.
type StoreInfo struct {
	Driver        string
	SchemaVersion int
	TotalPosts    int
	TotalScore    int64
}

var (
	_ PostStore = (*Store)(nil)
	_ PostStore = (*PGStore)(nil)
	_ Migrator  = (*Store)(nil)
	_ Migrator  = (*PGStore)(nil)
)
