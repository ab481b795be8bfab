package httpapi

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// 请求体结构校验：只约束字段类型，必填项与业务规则由 service 层判断
var (
	createLayerSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"project_number":   {"type": "string"},
			"layer_name":       {"type": "string"},
			"layer_type":       {"type": "string"},
			"properties":       {"type": ["object", "null"]},
			"is_visible":       {"type": ["boolean", "null"]},
			"z_index":          {"type": ["integer", "null"]},
			"layer_type_group": {"type": ["string", "null"]},
			"crs":              {"type": ["string", "null"]},
			"shared_with":      {"type": ["object", "null"]}
		}
	}`)

	updateFeatureSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"project_number":   {"type": "string"},
			"layer_name":       {"type": ["string", "null"]},
			"layer_type":       {"type": ["string", "null"]},
			"properties":       {"type": ["object", "null"]},
			"is_visible":       {"type": "boolean"},
			"z_index":          {"type": "integer"},
			"layer_type_group": {"type": ["string", "null"]},
			"crs":              {"type": ["string", "null"]},
			"shared_with":      {"type": ["object", "null"]}
		}
	}`)

	loginSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"username": {"type": "string"},
			"password": {"type": "string"}
		}
	}`)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// validateBody checks body against schema and returns a readable message
// listing every violation, or "" when the body conforms.
func validateBody(schema *gojsonschema.Schema, body []byte) (string, error) {
	if len(body) == 0 {
		body = []byte("{}")
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return "", err
	}
	if res.Valid() {
		return "", nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return "Invalid request body: " + strings.Join(msgs, "; "), nil
}
