package geo

import (
	"github.com/paulmach/orb/geojson"
)

// Drawing is one feature extracted from a create request.
type Drawing struct {
	Geometry   *geojson.Geometry
	Properties map[string]any
}

// Normalize turns a submitted geometry or feature collection into drawings in
// submission order. Collection members that are not valid Features, or whose
// coordinates do not decode, are skipped; the caller decides what an empty
// result means. fallback is used when a member carries no properties.
func Normalize(v any, fallback map[string]any) (drawings []Drawing, skipped int) {
	if IsFeatureCollection(v) {
		members := v.(map[string]any)["features"].([]any)
		for _, m := range members {
			if !IsValidMember(m) {
				skipped++
				continue
			}
			obj := m.(map[string]any)
			g, err := ParseGeometry(obj["geometry"])
			if err != nil {
				skipped++
				continue
			}
			props, _ := obj["properties"].(map[string]any)
			if props == nil {
				props = fallback
			}
			drawings = append(drawings, Drawing{Geometry: g, Properties: props})
		}
		return drawings, skipped
	}

	g, err := ParseGeometry(v)
	if err != nil {
		return nil, 1
	}
	return []Drawing{{Geometry: g, Properties: fallback}}, 0
}
