package domain

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LayerType is the closed set of drawing layer kinds.
type LayerType string

const (
	LayerTypeIsoConcentration LayerType = "iso-concentration"
	LayerTypePotentiometric   LayerType = "potentiometric"
	LayerTypeUtilities        LayerType = "utilities"
)

// DefaultCRS is applied when a create request carries no crs.
const DefaultCRS = "EPSG:4326"

// Valid reports whether t is one of the known layer types.
func (t LayerType) Valid() bool {
	switch t {
	case LayerTypeIsoConcentration, LayerTypePotentiometric, LayerTypeUtilities:
		return true
	}
	return false
}

// Feature 用户图层要素（对应 user_layers 表的一行）
// Several features sharing one ParentLayerID form a Layer.
type Feature struct {
	ID             int64             `json:"id"`
	ParentLayerID  string            `json:"parent_layer_id,omitempty"` // empty only for legacy rows
	ProjectNumber  string            `json:"project_number"`
	UserID         string            `json:"user_id"`
	LayerName      string            `json:"layer_name"`
	LayerType      LayerType         `json:"layer_type"`
	Geometry       *geojson.Geometry `json:"geometry"`
	Properties     map[string]any    `json:"properties"`
	IsVisible      bool              `json:"is_visible"`
	ZIndex         int               `json:"z_index"`
	LayerTypeGroup *string           `json:"layer_type_group"`
	CRS            string            `json:"crs"`
	SharedWith     map[string]any    `json:"shared_with"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Clone returns a copy that shares no maps with f.
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	c := *f
	c.Properties = cloneMap(f.Properties)
	c.SharedWith = cloneMap(f.SharedWith)
	if f.LayerTypeGroup != nil {
		g := *f.LayerTypeGroup
		c.LayerTypeGroup = &g
	}
	if f.Geometry != nil {
		g := *f.Geometry
		if f.Geometry.Coordinates != nil {
			g.Coordinates = orb.Clone(f.Geometry.Coordinates)
		}
		c.Geometry = &g
	}
	return &c
}

// FeaturePatch carries the fields of a partial update. A nil pointer or nil
// map means "leave unchanged".
type FeaturePatch struct {
	LayerName      *string
	LayerType      *LayerType
	Geometry       *geojson.Geometry
	Properties     map[string]any
	IsVisible      *bool
	ZIndex         *int
	LayerTypeGroup *string
	CRS            *string
	SharedWith     map[string]any
}

// Apply copies the present fields of p onto f.
func (p FeaturePatch) Apply(f *Feature) {
	if p.LayerName != nil {
		f.LayerName = *p.LayerName
	}
	if p.LayerType != nil {
		f.LayerType = *p.LayerType
	}
	if p.Geometry != nil {
		f.Geometry = p.Geometry
	}
	if p.Properties != nil {
		f.Properties = cloneMap(p.Properties)
	}
	if p.IsVisible != nil {
		f.IsVisible = *p.IsVisible
	}
	if p.ZIndex != nil {
		f.ZIndex = *p.ZIndex
	}
	if p.LayerTypeGroup != nil {
		g := *p.LayerTypeGroup
		f.LayerTypeGroup = &g
	}
	if p.CRS != nil {
		f.CRS = *p.CRS
	}
	if p.SharedWith != nil {
		f.SharedWith = cloneMap(p.SharedWith)
	}
}

// Layer is the client-facing view of all features sharing a parent layer id.
type Layer struct {
	ParentLayerID  string                     `json:"parent_layer_id"`
	LayerName      string                     `json:"layer_name"`
	LayerType      LayerType                  `json:"layer_type"`
	ProjectNumber  string                     `json:"project_number"`
	UserID         string                     `json:"user_id"`
	IsVisible      bool                       `json:"is_visible"`
	ZIndex         int                        `json:"z_index"`
	LayerTypeGroup *string                    `json:"layer_type_group"`
	CRS            string                     `json:"crs"`
	SharedWith     map[string]any             `json:"shared_with"`
	Geometry       *geojson.FeatureCollection `json:"geometry"`
	IDs            []int64                    `json:"ids"`
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
