package repository

import (
	"context"
	"errors"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"
)

var (
	// ErrNotFound is returned when no row matches the owner-scoped lookup.
	// It deliberately does not distinguish "missing" from "not yours".
	ErrNotFound = errors.New("not found")

	// ErrDuplicateLayerName 同一 (project_number, user_id) 下 layer_name 冲突
	ErrDuplicateLayerName = errors.New("duplicate layer name")
)

// LayersRepository 用户图层 Repository 接口
// All mutations run atomically together with their history entries.
type LayersRepository interface {
	// CreateFeatures persists features in order and writes one "create"
	// history entry per persisted row. Returns the stored rows.
	CreateFeatures(ctx context.Context, features []*domain.Feature, modifiedBy string) ([]*domain.Feature, error)

	// ListFeatures returns the owner's rows ordered by (parent_layer_id, created_at).
	// Legacy rows without a parent come last.
	ListFeatures(ctx context.Context, projectNumber, userID string) ([]*domain.Feature, error)

	// UpdateFeature applies patch to the owner's feature after recording its
	// prior state. updated_at is always refreshed.
	UpdateFeature(ctx context.Context, projectNumber, userID string, id int64, patch domain.FeaturePatch) (*domain.Feature, error)

	// DeleteFeatures removes one feature or every feature of a parent layer,
	// recording a "delete" entry per row first. Returns the removed ids.
	DeleteFeatures(ctx context.Context, scope DeleteScope) ([]int64, error)

	// ListHistory returns the owner's history entries, newest first.
	ListHistory(ctx context.Context, filter HistoryFilter) ([]*domain.HistoryEntry, error)
}

// DeleteScope selects rows for DeleteFeatures. Exactly one of FeatureID
// (non-zero) and ParentLayerID is set.
type DeleteScope struct {
	ProjectNumber string
	UserID        string
	FeatureID     int64
	ParentLayerID string
}

// HistoryFilter 历史查询过滤器
type HistoryFilter struct {
	ProjectNumber string
	UserID        string
	LayerID       int64  // 可选
	ParentLayerID string // 可选
	Limit         int    // 0 = no limit
}

// UsersRepository 登录账号 Repository 接口
type UsersRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}
