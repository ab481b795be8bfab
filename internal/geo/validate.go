// Package geo holds the GeoJSON rules of the layer store: which payloads are
// acceptable drawings and how a submitted collection becomes feature rows.
package geo

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"
)

const (
	typeFeature           = "Feature"
	typeFeatureCollection = "FeatureCollection"
)

var primitiveTypes = map[string]bool{
	"Point":           true,
	"LineString":      true,
	"Polygon":         true,
	"MultiPoint":      true,
	"MultiLineString": true,
	"MultiPolygon":    true,
}

// IsValidGeoJSON reports whether v is an accepted drawing: one of the six
// primitive geometry types, or a FeatureCollection whose every member is a
// Feature wrapping a primitive geometry. Anything else, including a missing or
// non-string "type", is rejected.
func IsValidGeoJSON(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	typ, _ := obj["type"].(string)
	if typ == typeFeatureCollection {
		members, ok := obj["features"].([]any)
		if !ok {
			return false
		}
		for _, m := range members {
			if !IsValidMember(m) {
				return false
			}
		}
		return true
	}
	return primitiveTypes[typ]
}

// IsValidMember reports whether v is {type:"Feature", geometry:<primitive>}.
func IsValidMember(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if typ, _ := obj["type"].(string); typ != typeFeature {
		return false
	}
	return isPrimitive(obj["geometry"])
}

// IsFeatureCollection reports whether v has the FeatureCollection envelope
// (type plus a features array), regardless of what the members hold.
func IsFeatureCollection(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	typ, _ := obj["type"].(string)
	_, ok = obj["features"].([]any)
	return typ == typeFeatureCollection && ok
}

func isPrimitive(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	typ, _ := obj["type"].(string)
	return primitiveTypes[typ]
}

// ParseGeometry decodes a primitive geometry object into the orb model.
// Coordinates that do not fit the declared type are an error.
func ParseGeometry(v any) (*geojson.Geometry, error) {
	if !isPrimitive(v) {
		return nil, fmt.Errorf("unsupported geometry")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	if g.Coordinates == nil {
		return nil, fmt.Errorf("geometry %s has no coordinates", g.Type)
	}
	return g, nil
}

// ParseUpdateGeometry accepts the geometry of an update request: a primitive
// geometry or a Feature wrapping one. Collections are never a single
// feature's geometry.
func ParseUpdateGeometry(v any) (*geojson.Geometry, error) {
	if obj, ok := v.(map[string]any); ok {
		if typ, _ := obj["type"].(string); typ == typeFeature {
			return ParseGeometry(obj["geometry"])
		}
	}
	return ParseGeometry(v)
}
