package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/api/user-layers/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/user-layers/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("PATCH", "/api/user-layers/{id}", "404")))
}

func TestRecordOperation(t *testing.T) {
	m := New()
	m.RecordOperation("create", "ok", 3)
	m.RecordOperation("create", "duplicate", 0)
	m.RecordBroadcastFailure("layerCreated")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.layerOps.WithLabelValues("create", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.layerFeatures.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastFails.WithLabelValues("layerCreated")))

	var nilMetrics *Metrics
	nilMetrics.RecordOperation("create", "ok", 1)
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordOperation("delete", "ok", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "envdata_user_layers_operations_total")
}
