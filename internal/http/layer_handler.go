package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/burnspe2144/env-reporting-backend/internal/broadcast"
	"github.com/burnspe2144/env-reporting-backend/internal/domain"
	"github.com/burnspe2144/env-reporting-backend/internal/identity"
	"github.com/burnspe2144/env-reporting-backend/internal/repository"
	"github.com/burnspe2144/env-reporting-backend/internal/service"

	"github.com/gorilla/mux"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const defaultBodyLimit = 10 << 20

// LayerHandler 用户图层 HTTP 处理器
type LayerHandler struct {
	layers    *service.LayerService
	hub       *broadcast.Hub
	bodyLimit int64
	logger    *zap.Logger
}

// NewLayerHandler hub may be nil, in which case /events answers 503.
func NewLayerHandler(layers *service.LayerService, hub *broadcast.Hub, bodyLimit int64, logger *zap.Logger) *LayerHandler {
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayerHandler{layers: layers, hub: hub, bodyLimit: bodyLimit, logger: logger}
}

type createLayerBody struct {
	ProjectNumber  string         `json:"project_number"`
	LayerName      string         `json:"layer_name"`
	LayerType      string         `json:"layer_type"`
	Geometry       any            `json:"geometry"`
	Properties     map[string]any `json:"properties"`
	IsVisible      *bool          `json:"is_visible"`
	ZIndex         *int           `json:"z_index"`
	LayerTypeGroup *string        `json:"layer_type_group"`
	CRS            *string        `json:"crs"`
	SharedWith     map[string]any `json:"shared_with"`
}

type updateFeatureBody struct {
	ProjectNumber  string         `json:"project_number"`
	LayerName      *string        `json:"layer_name"`
	LayerType      *string        `json:"layer_type"`
	Geometry       any            `json:"geometry"`
	Properties     map[string]any `json:"properties"`
	IsVisible      *bool          `json:"is_visible"`
	ZIndex         *int           `json:"z_index"`
	LayerTypeGroup *string        `json:"layer_type_group"`
	CRS            *string        `json:"crs"`
	SharedWith     map[string]any `json:"shared_with"`
}

type deletedIDs struct {
	IDs []int64 `json:"ids"`
}

// Create POST /api/user-layers
func (h *LayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var body createLayerBody
	if !h.decode(w, r, createLayerSchema, &body) {
		return
	}

	req := service.CreateLayerRequest{
		ProjectNumber:  body.ProjectNumber,
		LayerName:      body.LayerName,
		LayerType:      body.LayerType,
		Geometry:       body.Geometry,
		Properties:     body.Properties,
		IsVisible:      body.IsVisible,
		ZIndex:         body.ZIndex,
		LayerTypeGroup: body.LayerTypeGroup,
		SharedWith:     body.SharedWith,
	}
	if body.CRS != nil {
		req.CRS = *body.CRS
	}

	layer, err := h.layers.CreateLayer(r.Context(), caller, req)
	if err != nil {
		h.writeError(w, err, "Layer not found or unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, Ok(layer))
}

// List GET /api/user-layers?project_number=
func (h *LayerHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	layers, err := h.layers.ListLayers(r.Context(), caller, r.URL.Query().Get("project_number"))
	if err != nil {
		h.writeError(w, err, "Layer not found or unauthorized")
		return
	}
	if layers == nil {
		layers = []*domain.Layer{}
	}
	writeJSON(w, http.StatusOK, Ok(layers))
}

// Update PUT|PATCH /api/user-layers/{id}
func (h *LayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	featureID, ok := pathFeatureID(w, r)
	if !ok {
		return
	}
	var body updateFeatureBody
	if !h.decode(w, r, updateFeatureSchema, &body) {
		return
	}
	if body.ProjectNumber == "" {
		body.ProjectNumber = r.URL.Query().Get("project_number")
	}

	feature, err := h.layers.UpdateFeature(r.Context(), caller, featureID, service.UpdateFeatureRequest{
		ProjectNumber:  body.ProjectNumber,
		LayerName:      body.LayerName,
		LayerType:      body.LayerType,
		Geometry:       body.Geometry,
		Properties:     body.Properties,
		IsVisible:      body.IsVisible,
		ZIndex:         body.ZIndex,
		LayerTypeGroup: body.LayerTypeGroup,
		CRS:            body.CRS,
		SharedWith:     body.SharedWith,
	})
	if err != nil {
		h.writeError(w, err, "Feature not found or unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, Ok(feature))
}

// Delete DELETE /api/user-layers/{id}?project_number=[&parent_layer_id=]
// 带 parent_layer_id 时删除整个图层，路径中的 id 被忽略
func (h *LayerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	req := service.DeleteRequest{
		ProjectNumber: q.Get("project_number"),
		ParentLayerID: q.Get("parent_layer_id"),
	}
	notFound := "Layer not found or unauthorized"
	if req.ParentLayerID == "" {
		featureID, ok := pathFeatureID(w, r)
		if !ok {
			return
		}
		req.FeatureID = &featureID
		notFound = "Feature not found or unauthorized"
	}
	h.delete(w, r, caller, req, notFound)
}

// DeleteLayer DELETE /api/user-layers?project_number=&parent_layer_id=
func (h *LayerHandler) DeleteLayer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	h.delete(w, r, caller, service.DeleteRequest{
		ProjectNumber: q.Get("project_number"),
		ParentLayerID: q.Get("parent_layer_id"),
	}, "Layer not found or unauthorized")
}

func (h *LayerHandler) delete(w http.ResponseWriter, r *http.Request, caller domain.Identity, req service.DeleteRequest, notFound string) {
	ids, err := h.layers.DeleteFeatures(r.Context(), caller, req)
	if err != nil {
		h.writeError(w, err, notFound)
		return
	}
	writeJSON(w, http.StatusOK, Ok(deletedIDs{IDs: ids}))
}

// History GET /api/user-layers/history?project_number=&layer_id=&parent_layer_id=&limit=
func (h *LayerHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.history(w, r)
	if !ok {
		return
	}
	if entries == nil {
		entries = []*domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

// ExportHistory GET /api/user-layers/history/export?project_number=
func (h *LayerHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.history(w, r)
	if !ok {
		return
	}
	data, err := GenerateHistoryExport(entries)
	if err != nil {
		h.logger.Error("Failed to generate history export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("Failed to export history"))
		return
	}
	filename := "user-layers-history-" + sanitizeFilename(r.URL.Query().Get("project_number")) + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *LayerHandler) history(w http.ResponseWriter, r *http.Request) ([]*domain.HistoryEntry, bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return nil, false
	}
	q := r.URL.Query()
	req := service.HistoryRequest{
		ProjectNumber: q.Get("project_number"),
		ParentLayerID: q.Get("parent_layer_id"),
		Limit:         parseInt(q.Get("limit"), 0),
	}
	if s := q.Get("layer_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("Invalid layer_id"))
			return nil, false
		}
		req.LayerID = id
	}
	entries, err := h.layers.ListHistory(r.Context(), caller, req)
	if err != nil {
		h.writeError(w, err, "Layer not found or unauthorized")
		return nil, false
	}
	return entries, true
}

// Events GET /api/user-layers/events?project_number= (websocket)
func (h *LayerHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("Event stream unavailable"))
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.hub.ServeWS(w, r, caller, r.URL.Query().Get("project_number"))
}

func (h *LayerHandler) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := identity.FromContext(r.Context())
	if !ok || id == nil || id.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("Access token required"))
		return domain.Identity{}, false
	}
	return *id, true
}

func (h *LayerHandler) decode(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, out any) bool {
	return decodeBody(w, r, h.bodyLimit, schema, out, h.logger)
}

func (h *LayerHandler) writeError(w http.ResponseWriter, err error, notFound string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, Fail(ve.Message))
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail(notFound))
	case errors.Is(err, repository.ErrDuplicateLayerName):
		writeJSON(w, http.StatusConflict, Fail("Layer name already exists for this user and project"))
	default:
		h.logger.Error("User layer request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("Internal server error"))
	}
}

func pathFeatureID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("Invalid feature id"))
		return 0, false
	}
	return id, true
}

func sanitizeFilename(s string) string {
	if s == "" {
		return "all"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
