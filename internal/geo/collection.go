package geo

import (
	"github.com/burnspe2144/env-reporting-backend/internal/domain"

	"github.com/paulmach/orb/geojson"
)

// ToGeoJSONFeature wraps a stored feature for a FeatureCollection view.
func ToGeoJSONFeature(f *domain.Feature) *geojson.Feature {
	var gf *geojson.Feature
	if f.Geometry != nil {
		gf = geojson.NewFeature(f.Geometry.Geometry())
	} else {
		gf = &geojson.Feature{Type: typeFeature, Properties: geojson.Properties{}}
	}
	if f.Properties != nil {
		gf.Properties = geojson.Properties(f.Properties)
	}
	return gf
}

// NewLayerView starts a layer view from the first member of a group.
func NewLayerView(groupID string, first *domain.Feature) *domain.Layer {
	return &domain.Layer{
		ParentLayerID:  groupID,
		LayerName:      first.LayerName,
		LayerType:      first.LayerType,
		ProjectNumber:  first.ProjectNumber,
		UserID:         first.UserID,
		IsVisible:      first.IsVisible,
		ZIndex:         first.ZIndex,
		LayerTypeGroup: first.LayerTypeGroup,
		CRS:            first.CRS,
		SharedWith:     first.SharedWith,
		Geometry:       geojson.NewFeatureCollection(),
		IDs:            []int64{},
	}
}

// AppendMember adds f to the layer's collection and id list.
func AppendMember(l *domain.Layer, f *domain.Feature) {
	l.Geometry.Append(ToGeoJSONFeature(f))
	l.IDs = append(l.IDs, f.ID)
}
