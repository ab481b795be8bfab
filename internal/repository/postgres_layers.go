package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/burnspe2144/env-reporting-backend/common/database"
	"github.com/burnspe2144/env-reporting-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresLayersRepository 用户图层 Repository 实现（user_layers + user_layers_history）
type PostgresLayersRepository struct {
	db *sql.DB
}

// NewPostgresLayersRepository 创建用户图层 Repository
func NewPostgresLayersRepository(db *sql.DB) *PostgresLayersRepository {
	return &PostgresLayersRepository{db: db}
}

// 确保实现了接口
var _ LayersRepository = (*PostgresLayersRepository)(nil)

const featureColumns = `id, parent_layer_id::text, project_number, user_id, layer_name, layer_type,
	ST_AsGeoJSON(geometry), properties, is_visible, z_index, layer_type_group, crs, shared_with,
	created_at, updated_at`

// copies rows into the audit table; $1 ids, $2 modified_by, $3 action
const insertHistorySQL = `
	INSERT INTO user_layers_history (
		layer_id, parent_layer_id, project_number, user_id, layer_name, layer_type,
		geometry, properties, is_visible, z_index, layer_type_group, crs, shared_with,
		created_at, updated_at, modified_by, action
	)
	SELECT
		id, parent_layer_id, project_number, user_id, layer_name, layer_type,
		geometry, properties, is_visible, z_index, layer_type_group, crs, shared_with,
		created_at, updated_at, $2::text, $3::text
	FROM user_layers
	WHERE id = ANY($1)
	ORDER BY id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(s rowScanner) (*domain.Feature, error) {
	var (
		f          domain.Feature
		parentID   sql.NullString
		layerType  string
		geom       sql.NullString
		props      []byte
		group      sql.NullString
		sharedWith []byte
	)
	if err := s.Scan(
		&f.ID,
		&parentID,
		&f.ProjectNumber,
		&f.UserID,
		&f.LayerName,
		&layerType,
		&geom,
		&props,
		&f.IsVisible,
		&f.ZIndex,
		&group,
		&f.CRS,
		&sharedWith,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}

	f.ParentLayerID = parentID.String
	f.LayerType = domain.LayerType(layerType)
	if group.Valid {
		g := group.String
		f.LayerTypeGroup = &g
	}

	var err error
	if f.Geometry, err = unmarshalGeometry(geom); err != nil {
		return nil, err
	}
	if f.Properties, err = unmarshalJSONB(props); err != nil {
		return nil, err
	}
	if f.SharedWith, err = unmarshalJSONB(sharedWith); err != nil {
		return nil, err
	}
	return &f, nil
}

// mapWriteError 将唯一约束/排他约束冲突转换为 ErrDuplicateLayerName
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23P01": // unique_violation, exclusion_violation
			return fmt.Errorf("%w: %s", ErrDuplicateLayerName, pqErr.Constraint)
		}
	}
	return err
}

func nullableParent(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// CreateFeatures 批量插入要素并写入 create 历史（单事务）
func (r *PostgresLayersRepository) CreateFeatures(ctx context.Context, features []*domain.Feature, modifiedBy string) ([]*domain.Feature, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("no features to insert")
	}

	query := `
		INSERT INTO user_layers (
			parent_layer_id, project_number, user_id, layer_name, layer_type, geometry,
			properties, is_visible, z_index, layer_type_group, crs, shared_with
		) VALUES (
			$1, $2, $3, $4, $5, ST_GeomFromGeoJSON($6), $7, $8, $9, $10, $11, $12
		)
		RETURNING ` + featureColumns

	created := make([]*domain.Feature, 0, len(features))
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		ids := make([]int64, 0, len(features))
		for _, f := range features {
			geom, err := marshalGeometry(f.Geometry)
			if err != nil {
				return err
			}
			props, err := marshalJSONB(f.Properties)
			if err != nil {
				return err
			}
			shared, err := marshalJSONB(f.SharedWith)
			if err != nil {
				return err
			}

			row := tx.QueryRowContext(ctx, query,
				nullableParent(f.ParentLayerID),
				f.ProjectNumber,
				f.UserID,
				f.LayerName,
				string(f.LayerType),
				geom,
				props,
				f.IsVisible,
				f.ZIndex,
				f.LayerTypeGroup,
				f.CRS,
				shared,
			)
			stored, err := scanFeature(row)
			if err != nil {
				return fmt.Errorf("failed to insert user layer: %w", mapWriteError(err))
			}
			created = append(created, stored)
			ids = append(ids, stored.ID)
		}

		if _, err := tx.ExecContext(ctx, insertHistorySQL, pq.Array(ids), modifiedBy, string(domain.HistoryActionCreate)); err != nil {
			return fmt.Errorf("failed to insert layer history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListFeatures 查询用户在项目下的全部要素
func (r *PostgresLayersRepository) ListFeatures(ctx context.Context, projectNumber, userID string) ([]*domain.Feature, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM user_layers
		WHERE project_number = $1 AND user_id = $2
		ORDER BY parent_layer_id NULLS LAST, created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, projectNumber, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user layers: %w", err)
	}
	defer rows.Close()

	features := []*domain.Feature{}
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user layer: %w", err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user layers: %w", err)
	}
	return features, nil
}

// UpdateFeature 部分更新单个要素（先写 update 历史，再更新）
func (r *PostgresLayersRepository) UpdateFeature(ctx context.Context, projectNumber, userID string, id int64, patch domain.FeaturePatch) (*domain.Feature, error) {
	var updated *domain.Feature
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var parentID sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT parent_layer_id::text
			FROM user_layers
			WHERE id = $1 AND project_number = $2 AND user_id = $3
			FOR UPDATE
		`, id, projectNumber, userID).Scan(&parentID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user layer: %w", err)
		}

		if patch.LayerName != nil {
			// rows of the same parent layer share its name
			groupKey := parentID.String
			if !parentID.Valid {
				groupKey = strconv.FormatInt(id, 10)
			}
			var taken bool
			err := tx.QueryRowContext(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM user_layers
					WHERE project_number = $1 AND user_id = $2 AND layer_name = $3
					  AND id <> $4
					  AND COALESCE(parent_layer_id::text, id::text) <> $5
				)
			`, projectNumber, userID, *patch.LayerName, id, groupKey).Scan(&taken)
			if err != nil {
				return fmt.Errorf("failed to check layer name: %w", err)
			}
			if taken {
				return ErrDuplicateLayerName
			}
		}

		if _, err := tx.ExecContext(ctx, insertHistorySQL, pq.Array([]int64{id}), userID, string(domain.HistoryActionUpdate)); err != nil {
			return fmt.Errorf("failed to insert layer history: %w", err)
		}

		query, args, err := buildUpdate(projectNumber, userID, id, patch)
		if err != nil {
			return err
		}
		updated, err = scanFeature(tx.QueryRowContext(ctx, query, args...))
		if err != nil {
			return fmt.Errorf("failed to update user layer: %w", mapWriteError(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// buildUpdate 构建动态 SET 子句
func buildUpdate(projectNumber, userID string, id int64, patch domain.FeaturePatch) (string, []any, error) {
	var (
		sets []string
		args []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if patch.LayerName != nil {
		add("layer_name = $%d", *patch.LayerName)
	}
	if patch.LayerType != nil {
		add("layer_type = $%d", string(*patch.LayerType))
	}
	if patch.Geometry != nil {
		geom, err := marshalGeometry(patch.Geometry)
		if err != nil {
			return "", nil, err
		}
		add("geometry = ST_GeomFromGeoJSON($%d)", geom)
	}
	if patch.Properties != nil {
		props, err := marshalJSONB(patch.Properties)
		if err != nil {
			return "", nil, err
		}
		add("properties = $%d", props)
	}
	if patch.IsVisible != nil {
		add("is_visible = $%d", *patch.IsVisible)
	}
	if patch.ZIndex != nil {
		add("z_index = $%d", *patch.ZIndex)
	}
	if patch.LayerTypeGroup != nil {
		add("layer_type_group = $%d", *patch.LayerTypeGroup)
	}
	if patch.CRS != nil {
		add("crs = $%d", *patch.CRS)
	}
	if patch.SharedWith != nil {
		shared, err := marshalJSONB(patch.SharedWith)
		if err != nil {
			return "", nil, err
		}
		add("shared_with = $%d", shared)
	}
	sets = append(sets, "updated_at = clock_timestamp()")

	args = append(args, id, projectNumber, userID)
	n := len(args)
	query := fmt.Sprintf(`
		UPDATE user_layers
		SET %s
		WHERE id = $%d AND project_number = $%d AND user_id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), n-2, n-1, n, featureColumns)
	return query, args, nil
}

// DeleteFeatures 删除单个要素或整个父图层（先写 delete 历史）
func (r *PostgresLayersRepository) DeleteFeatures(ctx context.Context, scope DeleteScope) ([]int64, error) {
	var (
		lockQuery string
		lockArgs  []any
	)
	switch {
	case scope.FeatureID != 0 && scope.ParentLayerID == "":
		lockQuery = `
			SELECT id FROM user_layers
			WHERE id = $1 AND project_number = $2 AND user_id = $3
			FOR UPDATE
		`
		lockArgs = []any{scope.FeatureID, scope.ProjectNumber, scope.UserID}
	case scope.FeatureID == 0 && scope.ParentLayerID != "":
		if _, err := uuid.Parse(scope.ParentLayerID); err != nil {
			// 旧数据没有 parent_layer_id，列表里用行 id 作为图层 key
			legacyID, perr := strconv.ParseInt(scope.ParentLayerID, 10, 64)
			if perr != nil || legacyID <= 0 {
				return nil, ErrNotFound
			}
			lockQuery = `
				SELECT id FROM user_layers
				WHERE id = $1 AND parent_layer_id IS NULL AND project_number = $2 AND user_id = $3
				FOR UPDATE
			`
			lockArgs = []any{legacyID, scope.ProjectNumber, scope.UserID}
			break
		}
		lockQuery = `
			SELECT id FROM user_layers
			WHERE parent_layer_id = $1::uuid AND project_number = $2 AND user_id = $3
			ORDER BY created_at, id
			FOR UPDATE
		`
		lockArgs = []any{scope.ParentLayerID, scope.ProjectNumber, scope.UserID}
	default:
		return nil, fmt.Errorf("delete requires exactly one of feature id and parent layer id")
	}

	var ids []int64
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, lockQuery, lockArgs...)
		if err != nil {
			return fmt.Errorf("failed to lock user layers: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan user layer id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate user layer ids: %w", err)
		}
		if len(ids) == 0 {
			return ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, insertHistorySQL, pq.Array(ids), scope.UserID, string(domain.HistoryActionDelete)); err != nil {
			return fmt.Errorf("failed to insert layer history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_layers WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to delete user layers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListHistory 查询历史记录（按 modified_at 倒序）
func (r *PostgresLayersRepository) ListHistory(ctx context.Context, filter HistoryFilter) ([]*domain.HistoryEntry, error) {
	where := []string{"project_number = $1", "user_id = $2"}
	args := []any{filter.ProjectNumber, filter.UserID}
	argIdx := 3

	if filter.LayerID != 0 {
		where = append(where, fmt.Sprintf("layer_id = $%d", argIdx))
		args = append(args, filter.LayerID)
		argIdx++
	}
	if filter.ParentLayerID != "" {
		if _, err := uuid.Parse(filter.ParentLayerID); err != nil {
			return []*domain.HistoryEntry{}, nil
		}
		where = append(where, fmt.Sprintf("parent_layer_id = $%d::uuid", argIdx))
		args = append(args, filter.ParentLayerID)
		argIdx++
	}

	query := `
		SELECT
			id, action, modified_by, modified_at,
			layer_id, parent_layer_id::text, project_number, user_id, layer_name, layer_type,
			ST_AsGeoJSON(geometry), properties, is_visible, z_index, layer_type_group, crs, shared_with,
			created_at, updated_at
		FROM user_layers_history
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY modified_at DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list layer history: %w", err)
	}
	defer rows.Close()

	entries := []*domain.HistoryEntry{}
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate layer history: %w", err)
	}
	return entries, nil
}

func scanHistoryEntry(s rowScanner) (*domain.HistoryEntry, error) {
	var (
		e          domain.HistoryEntry
		action     string
		parentID   sql.NullString
		layerType  string
		geom       sql.NullString
		props      []byte
		isVisible  sql.NullBool
		zIndex     sql.NullInt64
		group      sql.NullString
		crs        sql.NullString
		sharedWith []byte
		createdAt  sql.NullTime
		updatedAt  sql.NullTime
	)
	snap := &e.Snapshot
	if err := s.Scan(
		&e.ID, &action, &e.ModifiedBy, &e.ModifiedAt,
		&snap.ID, &parentID, &snap.ProjectNumber, &snap.UserID, &snap.LayerName, &layerType,
		&geom, &props, &isVisible, &zIndex, &group, &crs, &sharedWith,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	e.Action = domain.HistoryAction(action)
	snap.ParentLayerID = parentID.String
	snap.LayerType = domain.LayerType(layerType)
	snap.IsVisible = isVisible.Bool
	snap.ZIndex = int(zIndex.Int64)
	snap.CRS = crs.String
	snap.CreatedAt = nullTime(createdAt)
	snap.UpdatedAt = nullTime(updatedAt)
	if group.Valid {
		g := group.String
		snap.LayerTypeGroup = &g
	}

	var err error
	if snap.Geometry, err = unmarshalGeometry(geom); err != nil {
		return nil, err
	}
	if snap.Properties, err = unmarshalJSONB(props); err != nil {
		return nil, err
	}
	if snap.SharedWith, err = unmarshalJSONB(sharedWith); err != nil {
		return nil, err
	}
	return &e, nil
}

func nullTime(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}
