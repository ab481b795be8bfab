package repository

import (
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"
)

// marshalJSONB encodes a map for a JSONB column; nil becomes '{}'.
func marshalJSONB(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal jsonb: %w", err)
	}
	return string(b), nil
}

func unmarshalJSONB(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal jsonb: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// marshalGeometry produces the GeoJSON text passed to ST_GeomFromGeoJSON.
func marshalGeometry(g *geojson.Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("geometry is required")
	}
	b, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to marshal geometry: %w", err)
	}
	return string(b), nil
}

// unmarshalGeometry decodes the ST_AsGeoJSON output of a row.
func unmarshalGeometry(raw sql.NullString) (*geojson.Geometry, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	g, err := geojson.UnmarshalGeometry([]byte(raw.String))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal geometry: %w", err)
	}
	return g, nil
}
