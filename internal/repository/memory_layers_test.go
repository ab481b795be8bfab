package repository

import (
	"context"
	"testing"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLayers_CreateAndList(t *testing.T) {
	repo := NewMemoryLayersRepository()
	ctx := context.Background()

	first := uuid.NewString()
	second := uuid.NewString()
	_, err := repo.CreateFeatures(ctx, []*domain.Feature{
		newPointFeature(first, "wells", 1, 2),
		newPointFeature(first, "wells", 3, 4),
	}, "user-1")
	require.NoError(t, err)
	_, err = repo.CreateFeatures(ctx, []*domain.Feature{newPointFeature(second, "pipes", 5, 6)}, "user-1")
	require.NoError(t, err)

	other := newPointFeature(uuid.NewString(), "wells", 0, 0)
	other.UserID = "user-2"
	_, err = repo.CreateFeatures(ctx, []*domain.Feature{other}, "user-2")
	require.NoError(t, err, "names are scoped per user")

	features, err := repo.ListFeatures(ctx, "P-100", "user-1")
	require.NoError(t, err)
	require.Len(t, features, 3)
	for _, f := range features {
		assert.Equal(t, "user-1", f.UserID)
	}

	history, err := repo.ListHistory(ctx, HistoryFilter{ProjectNumber: "P-100", UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, e := range history {
		assert.Equal(t, domain.HistoryActionCreate, e.Action)
	}
}

func TestMemoryLayers_DuplicateName(t *testing.T) {
	repo := NewMemoryLayersRepository()
	ctx := context.Background()

	_, err := repo.CreateFeatures(ctx, []*domain.Feature{newPointFeature(uuid.NewString(), "wells", 1, 2)}, "user-1")
	require.NoError(t, err)

	_, err = repo.CreateFeatures(ctx, []*domain.Feature{newPointFeature(uuid.NewString(), "wells", 1, 2)}, "user-1")
	assert.ErrorIs(t, err, ErrDuplicateLayerName)

	features, _ := repo.ListFeatures(ctx, "P-100", "user-1")
	assert.Len(t, features, 1)
}

func TestMemoryLayers_LegacyRowsSortLast(t *testing.T) {
	repo := NewMemoryLayersRepository()
	ctx := context.Background()

	_, err := repo.CreateFeatures(ctx, []*domain.Feature{newPointFeature("", "legacy", 1, 2)}, "user-1")
	require.NoError(t, err)
	_, err = repo.CreateFeatures(ctx, []*domain.Feature{newPointFeature(uuid.NewString(), "modern", 1, 2)}, "user-1")
	require.NoError(t, err)

	features, err := repo.ListFeatures(ctx, "P-100", "user-1")
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "modern", features[0].LayerName)
	assert.Equal(t, "legacy", features[1].LayerName)
}

func TestMemoryLayers_UpdateRecordsPriorState(t *testing.T) {
	repo := NewMemoryLayersRepository()
	ctx := context.Background()

	created, err := repo.CreateFeatures(ctx, []*domain.Feature{newPointFeature(uuid.NewString(), "wells", 1, 2)}, "user-1")
	require.NoError(t, err)
	id := created[0].ID

	z := 9
	updated, err := repo.UpdateFeature(ctx, "P-100", "user-1", id, domain.FeaturePatch{
		ZIndex:   &z,
		Geometry: geojson.NewGeometry(orb.Point{7, 8}),
	})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.ZIndex)
	assert.Equal(t, orb.Point{7, 8}, updated.Geometry.Coordinates)
	assert.Equal(t, "wells", updated.LayerName)
	assert.True(t, updated.UpdatedAt.After(created[0].UpdatedAt))

	history, err := repo.ListHistory(ctx, HistoryFilter{ProjectNumber: "P-100", UserID: "user-1", LayerID: id})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.HistoryActionUpdate, history[0].Action)
	assert.Equal(t, 0, history[0].Snapshot.ZIndex)
	assert.Equal(t, orb.Point{1, 2}, history[0].Snapshot.Geometry.Coordinates)
}

func TestMemoryLayers_UpdateScopedToOwner(t *testing.T) {
	repo := NewMemoryLayersRepository()
	ctx := context.Background()

	created, err := repo.CreateFeatures(ctx, []*domain.Feature{newPointFeature(uuid.NewString(), "wells", 1, 2)}, "user-1")
	require.NoError(t, err)

	z := 1
	_, err = repo.UpdateFeature(ctx, "P-100", "user-2", created[0].ID, domain.FeaturePatch{ZIndex: &z})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.UpdateFeature(ctx, "P-999", "user-1", created[0].ID, domain.FeaturePatch{ZIndex: &z})
	assert.ErrorIs(t, err, ErrNotFound)

	history, _ := repo.ListHistory(ctx, HistoryFilter{ProjectNumber: "P-100", UserID: "user-1"})
	assert.Len(t, history, 1)
}

func TestMemoryLayers_RenameIntoTakenName(t *testing.T) {
	repo := NewMemoryLayersRepository()
	ctx := context.Background()

	parent := uuid.NewString()
	a, err := repo.CreateFeatures(ctx, []*domain.Feature{
		newPointFeature(parent, "wells", 1, 2),
		newPointFeature(parent, "wells", 3, 4),
	}, "user-1")
	require.NoError(t, err)
	_, err = repo.CreateFeatures(ctx, []*domain.Feature{newPointFeature(uuid.NewString(), "pipes", 5, 6)}, "user-1")
	require.NoError(t, err)

	taken := "pipes"
	_, err = repo.UpdateFeature(ctx, "P-100", "user-1", a[0].ID, domain.FeaturePatch{LayerName: &taken})
	assert.ErrorIs(t, err, ErrDuplicateLayerName)

	// keeping the sibling's name is not a conflict
	same := "wells"
	_, err = repo.UpdateFeature(ctx, "P-100", "user-1", a[0].ID, domain.FeaturePatch{LayerName: &same})
	assert.NoError(t, err)
}

func TestMemoryLayers_DeleteByParent(t *testing.T) {
	repo := NewMemoryLayersRepository()
	ctx := context.Background()

	parent := uuid.NewString()
	created, err := repo.CreateFeatures(ctx, []*domain.Feature{
		newPointFeature(parent, "wells", 1, 2),
		newPointFeature(parent, "wells", 3, 4),
	}, "user-1")
	require.NoError(t, err)

	ids, err := repo.DeleteFeatures(ctx, DeleteScope{ProjectNumber: "P-100", UserID: "user-1", ParentLayerID: parent})
	require.NoError(t, err)
	assert.Equal(t, []int64{created[0].ID, created[1].ID}, ids)

	features, _ := repo.ListFeatures(ctx, "P-100", "user-1")
	assert.Empty(t, features)

	history, _ := repo.ListHistory(ctx, HistoryFilter{ProjectNumber: "P-100", UserID: "user-1", ParentLayerID: parent})
	require.Len(t, history, 4)
	assert.Equal(t, domain.HistoryActionDelete, history[0].Action)
	assert.Equal(t, domain.HistoryActionDelete, history[1].Action)

	_, err = repo.DeleteFeatures(ctx, DeleteScope{ProjectNumber: "P-100", UserID: "user-1", ParentLayerID: parent})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLayers_DeleteRequiresOneScope(t *testing.T) {
	repo := NewMemoryLayersRepository()
	_, err := repo.DeleteFeatures(context.Background(), DeleteScope{ProjectNumber: "P-100", UserID: "user-1", FeatureID: 1, ParentLayerID: "x"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
