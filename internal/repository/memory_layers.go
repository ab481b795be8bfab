package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"
)

// MemoryLayersRepository 内存实现（无数据库时使用；也用于测试）
// It enforces the same name rule as the database exclusion constraint.
type MemoryLayersRepository struct {
	mu         sync.Mutex
	nextID     int64
	nextHistID int64
	rows       map[int64]*domain.Feature
	history    []*domain.HistoryEntry
	now        func() time.Time
}

// NewMemoryLayersRepository 创建内存 Repository
func NewMemoryLayersRepository() *MemoryLayersRepository {
	return &MemoryLayersRepository{
		rows: map[int64]*domain.Feature{},
		now:  time.Now,
	}
}

var _ LayersRepository = (*MemoryLayersRepository)(nil)

func groupKey(f *domain.Feature) string {
	if f.ParentLayerID != "" {
		return f.ParentLayerID
	}
	return strconv.FormatInt(f.ID, 10)
}

// nameTaken reports whether another layer of the owner already uses name.
func (r *MemoryLayersRepository) nameTaken(projectNumber, userID, name, ownGroup string) bool {
	for _, row := range r.rows {
		if row.ProjectNumber == projectNumber && row.UserID == userID && row.LayerName == name && groupKey(row) != ownGroup {
			return true
		}
	}
	return false
}

func (r *MemoryLayersRepository) record(action domain.HistoryAction, modifiedBy string, f *domain.Feature) {
	r.nextHistID++
	r.history = append(r.history, &domain.HistoryEntry{
		ID:         r.nextHistID,
		Action:     action,
		ModifiedBy: modifiedBy,
		ModifiedAt: r.now(),
		Snapshot:   *f.Clone(),
	})
}

// CreateFeatures 批量插入（全部成功或全部失败）
func (r *MemoryLayersRepository) CreateFeatures(ctx context.Context, features []*domain.Feature, modifiedBy string) ([]*domain.Feature, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("no features to insert")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("geometry is required")
		}
		if r.nameTaken(f.ProjectNumber, f.UserID, f.LayerName, f.ParentLayerID) {
			return nil, ErrDuplicateLayerName
		}
	}
	// members of one request must agree on their parent when they share a name
	seen := map[string]string{}
	for _, f := range features {
		k := f.ProjectNumber + "\x00" + f.UserID + "\x00" + f.LayerName
		if parent, ok := seen[k]; ok && (parent != f.ParentLayerID || parent == "") {
			return nil, ErrDuplicateLayerName
		}
		seen[k] = f.ParentLayerID
	}

	created := make([]*domain.Feature, 0, len(features))
	for _, f := range features {
		r.nextID++
		now := r.now()
		stored := f.Clone()
		stored.ID = r.nextID
		stored.CreatedAt = now
		stored.UpdatedAt = now
		if stored.Properties == nil {
			stored.Properties = map[string]any{}
		}
		if stored.SharedWith == nil {
			stored.SharedWith = map[string]any{}
		}
		r.rows[stored.ID] = stored
		r.record(domain.HistoryActionCreate, modifiedBy, stored)
		created = append(created, stored.Clone())
	}
	return created, nil
}

// ListFeatures 按 (parent_layer_id, created_at) 排序，遗留行排在最后
func (r *MemoryLayersRepository) ListFeatures(ctx context.Context, projectNumber, userID string) ([]*domain.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	out := []*domain.Feature{}
	for _, row := range r.rows {
		if row.ProjectNumber == projectNumber && row.UserID == userID {
			out = append(out, row.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ParentLayerID != b.ParentLayerID {
			if a.ParentLayerID == "" || b.ParentLayerID == "" {
				return b.ParentLayerID == ""
			}
			return a.ParentLayerID < b.ParentLayerID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// UpdateFeature 部分更新
func (r *MemoryLayersRepository) UpdateFeature(ctx context.Context, projectNumber, userID string, id int64, patch domain.FeaturePatch) (*domain.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.ProjectNumber != projectNumber || row.UserID != userID {
		return nil, ErrNotFound
	}
	if patch.LayerName != nil && r.nameTaken(projectNumber, userID, *patch.LayerName, groupKey(row)) {
		return nil, ErrDuplicateLayerName
	}

	r.record(domain.HistoryActionUpdate, userID, row)

	updated := row.Clone()
	patch.Apply(updated)
	now := r.now()
	if !now.After(row.UpdatedAt) {
		now = row.UpdatedAt.Add(time.Microsecond)
	}
	updated.UpdatedAt = now
	r.rows[id] = updated
	return updated.Clone(), nil
}

// DeleteFeatures 删除单个要素或整个父图层
func (r *MemoryLayersRepository) DeleteFeatures(ctx context.Context, scope DeleteScope) ([]int64, error) {
	if (scope.FeatureID != 0) == (scope.ParentLayerID != "") {
		return nil, fmt.Errorf("delete requires exactly one of feature id and parent layer id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var victims []*domain.Feature
	for _, row := range r.rows {
		if row.ProjectNumber != scope.ProjectNumber || row.UserID != scope.UserID {
			continue
		}
		if (scope.FeatureID != 0 && row.ID == scope.FeatureID) ||
			(scope.ParentLayerID != "" && groupKey(row) == scope.ParentLayerID) {
			victims = append(victims, row)
		}
	}
	if len(victims) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].ID < victims[j].ID })

	ids := make([]int64, 0, len(victims))
	for _, row := range victims {
		r.record(domain.HistoryActionDelete, scope.UserID, row)
		delete(r.rows, row.ID)
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// ListHistory 历史倒序
func (r *MemoryLayersRepository) ListHistory(ctx context.Context, filter HistoryFilter) ([]*domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*domain.HistoryEntry{}
	for i := len(r.history) - 1; i >= 0; i-- {
		e := r.history[i]
		s := e.Snapshot
		if s.ProjectNumber != filter.ProjectNumber || s.UserID != filter.UserID {
			continue
		}
		if filter.LayerID != 0 && s.ID != filter.LayerID {
			continue
		}
		if filter.ParentLayerID != "" && s.ParentLayerID != filter.ParentLayerID {
			continue
		}
		c := *e
		c.Snapshot = *s.Clone()
		out = append(out, &c)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
