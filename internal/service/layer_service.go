package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/burnspe2144/env-reporting-backend/internal/broadcast"
	"github.com/burnspe2144/env-reporting-backend/internal/domain"
	"github.com/burnspe2144/env-reporting-backend/internal/geo"
	"github.com/burnspe2144/env-reporting-backend/internal/metrics"
	"github.com/burnspe2144/env-reporting-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const broadcastTimeout = 5 * time.Second

// LayerService 用户图层服务：创建/查询/更新/删除 + 历史
type LayerService struct {
	repo        repository.LayersRepository
	broadcaster broadcast.Broadcaster
	metrics     *metrics.Metrics
	logger      *zap.Logger
	newLayerID  func() string
}

// NewLayerService 创建用户图层服务；metrics 可为 nil
func NewLayerService(repo repository.LayersRepository, broadcaster broadcast.Broadcaster, m *metrics.Metrics, logger *zap.Logger) *LayerService {
	if broadcaster == nil {
		broadcaster = broadcast.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayerService{
		repo:        repo,
		broadcaster: broadcaster,
		metrics:     m,
		logger:      logger,
		newLayerID:  uuid.NewString,
	}
}

// CreateLayerRequest 创建图层请求
type CreateLayerRequest struct {
	ProjectNumber  string
	LayerName      string
	LayerType      string
	Geometry       any // decoded GeoJSON
	Properties     map[string]any
	IsVisible      *bool // default true
	ZIndex         *int  // default 0
	LayerTypeGroup *string
	CRS            string // default EPSG:4326
	SharedWith     map[string]any
}

// CreateLayer splits the submitted geometry into features that share one new
// parent layer id and stores them with their history in one transaction.
func (s *LayerService) CreateLayer(ctx context.Context, caller domain.Identity, req CreateLayerRequest) (*domain.Layer, error) {
	if req.ProjectNumber == "" || req.LayerName == "" || req.LayerType == "" || req.Geometry == nil {
		return nil, s.fail("create", ErrMissingFields)
	}
	layerType := domain.LayerType(req.LayerType)
	if !layerType.Valid() {
		return nil, s.fail("create", ErrInvalidLayerType)
	}
	// a collection is accepted as long as the envelope is sound; bad members are skipped below
	if !geo.IsFeatureCollection(req.Geometry) && !geo.IsValidGeoJSON(req.Geometry) {
		return nil, s.fail("create", ErrInvalidGeometry)
	}

	drawings, skipped := geo.Normalize(req.Geometry, req.Properties)
	if len(drawings) == 0 {
		if geo.IsFeatureCollection(req.Geometry) {
			return nil, s.fail("create", ErrNoValidFeatures)
		}
		return nil, s.fail("create", ErrInvalidGeometry)
	}
	if skipped > 0 {
		s.logger.Warn("Skipped invalid features in collection",
			zap.String("project_number", req.ProjectNumber),
			zap.String("layer_name", req.LayerName),
			zap.Int("skipped", skipped),
			zap.Int("kept", len(drawings)),
		)
	}

	isVisible := true
	if req.IsVisible != nil {
		isVisible = *req.IsVisible
	}
	zIndex := 0
	if req.ZIndex != nil {
		zIndex = *req.ZIndex
	}
	crs := req.CRS
	if crs == "" {
		crs = domain.DefaultCRS
	}
	sharedWith := req.SharedWith
	if sharedWith == nil {
		sharedWith = map[string]any{}
	}

	parentID := s.newLayerID()
	features := make([]*domain.Feature, 0, len(drawings))
	for _, d := range drawings {
		props := d.Properties
		if props == nil {
			props = map[string]any{}
		}
		features = append(features, &domain.Feature{
			ParentLayerID:  parentID,
			ProjectNumber:  req.ProjectNumber,
			UserID:         caller.UserID,
			LayerName:      req.LayerName,
			LayerType:      layerType,
			Geometry:       d.Geometry,
			Properties:     props,
			IsVisible:      isVisible,
			ZIndex:         zIndex,
			LayerTypeGroup: req.LayerTypeGroup,
			CRS:            crs,
			SharedWith:     sharedWith,
		})
	}

	created, err := s.repo.CreateFeatures(ctx, features, caller.UserID)
	if err != nil {
		return nil, s.fail("create", fmt.Errorf("failed to create layer: %w", err))
	}
	s.metrics.RecordOperation("create", "ok", len(created))
	s.logger.Info("Layer created",
		zap.String("parent_layer_id", parentID),
		zap.String("project_number", req.ProjectNumber),
		zap.String("user_id", caller.UserID),
		zap.Int("features", len(created)),
	)

	for _, f := range created {
		s.publish(ctx, domain.LayerEvent{Name: domain.EventLayerCreated, ProjectNumber: f.ProjectNumber, Data: f})
	}

	layer := geo.NewLayerView(parentID, created[0])
	for _, f := range created {
		geo.AppendMember(layer, f)
	}
	return layer, nil
}

// ListLayers groups the caller's features into layer views. Legacy rows with
// no parent layer id each form a layer of their own, keyed by their row id;
// DeleteFeatures accepts that key as ParentLayerID.
func (s *LayerService) ListLayers(ctx context.Context, caller domain.Identity, projectNumber string) ([]*domain.Layer, error) {
	if projectNumber == "" {
		return nil, s.fail("list", ErrMissingProject)
	}

	features, err := s.repo.ListFeatures(ctx, projectNumber, caller.UserID)
	if err != nil {
		return nil, s.fail("list", fmt.Errorf("failed to list layers: %w", err))
	}

	layers := []*domain.Layer{}
	byGroup := map[string]*domain.Layer{}
	for _, f := range features {
		key := f.ParentLayerID
		if key == "" {
			key = strconv.FormatInt(f.ID, 10)
		}
		layer, ok := byGroup[key]
		if !ok {
			layer = geo.NewLayerView(key, f)
			byGroup[key] = layer
			layers = append(layers, layer)
		}
		geo.AppendMember(layer, f)
	}
	s.metrics.RecordOperation("list", "ok", 0)
	return layers, nil
}

// UpdateFeatureRequest 部分更新请求；nil 表示不修改
type UpdateFeatureRequest struct {
	ProjectNumber  string
	LayerName      *string
	LayerType      *string
	Geometry       any
	Properties     map[string]any
	IsVisible      *bool
	ZIndex         *int
	LayerTypeGroup *string
	CRS            *string
	SharedWith     map[string]any
}

// UpdateFeature changes one feature of the caller. Empty strings for
// layer_name, layer_type, layer_type_group and crs leave the field as is.
func (s *LayerService) UpdateFeature(ctx context.Context, caller domain.Identity, featureID int64, req UpdateFeatureRequest) (*domain.Feature, error) {
	if req.ProjectNumber == "" {
		return nil, s.fail("update", ErrMissingProject)
	}

	var patch domain.FeaturePatch
	if req.Geometry != nil {
		g, err := geo.ParseUpdateGeometry(req.Geometry)
		if err != nil {
			return nil, s.fail("update", ErrInvalidGeometry)
		}
		patch.Geometry = g
	}
	if req.LayerType != nil && *req.LayerType != "" {
		lt := domain.LayerType(*req.LayerType)
		if !lt.Valid() {
			return nil, s.fail("update", ErrInvalidLayerType)
		}
		patch.LayerType = &lt
	}
	if req.LayerName != nil && *req.LayerName != "" {
		patch.LayerName = req.LayerName
	}
	if req.LayerTypeGroup != nil && *req.LayerTypeGroup != "" {
		patch.LayerTypeGroup = req.LayerTypeGroup
	}
	if req.CRS != nil && *req.CRS != "" {
		patch.CRS = req.CRS
	}
	patch.Properties = req.Properties
	patch.SharedWith = req.SharedWith
	patch.IsVisible = req.IsVisible
	patch.ZIndex = req.ZIndex

	updated, err := s.repo.UpdateFeature(ctx, req.ProjectNumber, caller.UserID, featureID, patch)
	if err != nil {
		return nil, s.fail("update", fmt.Errorf("failed to update feature %d: %w", featureID, err))
	}
	s.metrics.RecordOperation("update", "ok", 1)

	s.publish(ctx, domain.LayerEvent{Name: domain.EventLayerUpdated, ProjectNumber: updated.ProjectNumber, Data: updated})
	return updated, nil
}

// DeleteRequest 删除请求：FeatureID 与 ParentLayerID 二选一
type DeleteRequest struct {
	ProjectNumber string
	FeatureID     *int64
	ParentLayerID string
}

// DeleteFeatures removes one feature or a whole layer of the caller and
// returns the removed ids.
func (s *LayerService) DeleteFeatures(ctx context.Context, caller domain.Identity, req DeleteRequest) ([]int64, error) {
	if req.ProjectNumber == "" {
		return nil, s.fail("delete", ErrMissingProject)
	}
	if (req.FeatureID == nil) == (req.ParentLayerID == "") {
		return nil, s.fail("delete", ErrInvalidScope)
	}

	scope := repository.DeleteScope{
		ProjectNumber: req.ProjectNumber,
		UserID:        caller.UserID,
		ParentLayerID: req.ParentLayerID,
	}
	if req.FeatureID != nil {
		if *req.FeatureID <= 0 {
			return nil, s.fail("delete", fmt.Errorf("failed to delete: %w", repository.ErrNotFound))
		}
		scope.FeatureID = *req.FeatureID
	}

	ids, err := s.repo.DeleteFeatures(ctx, scope)
	if err != nil {
		return nil, s.fail("delete", fmt.Errorf("failed to delete: %w", err))
	}
	s.metrics.RecordOperation("delete", "ok", len(ids))
	s.logger.Info("Features deleted",
		zap.String("project_number", req.ProjectNumber),
		zap.String("user_id", caller.UserID),
		zap.Int64s("ids", ids),
	)

	for _, id := range ids {
		s.publish(ctx, domain.LayerEvent{
			Name:          domain.EventLayerDeleted,
			ProjectNumber: req.ProjectNumber,
			Data:          domain.DeletedFeature{ID: id, ProjectNumber: req.ProjectNumber, UserID: caller.UserID},
		})
	}
	return ids, nil
}

// HistoryRequest 历史查询请求
type HistoryRequest struct {
	ProjectNumber string
	LayerID       int64
	ParentLayerID string
	Limit         int
}

// ListHistory returns the caller's audit entries, newest first.
func (s *LayerService) ListHistory(ctx context.Context, caller domain.Identity, req HistoryRequest) ([]*domain.HistoryEntry, error) {
	if req.ProjectNumber == "" {
		return nil, s.fail("history", ErrMissingProject)
	}
	entries, err := s.repo.ListHistory(ctx, repository.HistoryFilter{
		ProjectNumber: req.ProjectNumber,
		UserID:        caller.UserID,
		LayerID:       req.LayerID,
		ParentLayerID: req.ParentLayerID,
		Limit:         req.Limit,
	})
	if err != nil {
		return nil, s.fail("history", fmt.Errorf("failed to list history: %w", err))
	}
	s.metrics.RecordOperation("history", "ok", 0)
	return entries, nil
}

// publish 在提交之后广播；失败只记录日志，不影响响应
func (s *LayerService) publish(ctx context.Context, event domain.LayerEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()
	if err := s.broadcaster.Publish(ctx, event); err != nil {
		s.metrics.RecordBroadcastFailure(event.Name)
		s.logger.Warn("Failed to broadcast layer event",
			zap.String("event", event.Name),
			zap.String("project_number", event.ProjectNumber),
			zap.Error(err),
		)
	}
}

// fail records the outcome class of a failed operation and returns err.
func (s *LayerService) fail(operation string, err error) error {
	outcome := "error"
	switch {
	case errors.Is(err, ErrInvalidInput):
		outcome = "invalid"
	case errors.Is(err, repository.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, repository.ErrDuplicateLayerName):
		outcome = "duplicate"
	}
	s.metrics.RecordOperation(operation, outcome, 0)
	return err
}
