package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Router 基于 gorilla/mux，按模块注册路由
type Router struct {
	mux    *mux.Router
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := mux.NewRouter()
	m.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, Fail("Not found"))
	})
	m.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("Method not allowed"))
	})
	r := &Router{mux: m, logger: logger}
	m.Use(r.logRequests)
	return r
}

// Use adds a middleware that runs after route matching.
func (r *Router) Use(mw ...mux.MiddlewareFunc) {
	r.mux.Use(mw...)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRootRoutes 健康检查
func (r *Router) RegisterRootRoutes() {
	r.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok("Server is running!"))
	}).Methods(http.MethodGet)
}

// RegisterAuthRoutes 登录与 token 校验
func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	s := r.mux.PathPrefix("/api/auth").Subrouter()
	s.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	s.HandleFunc("/validate", h.Validate).Methods(http.MethodGet)
}

// RegisterLayerRoutes 用户图层 API。auth 校验 bearer token，streamAuth 用于 websocket，
// limit（可为 nil）限制写操作频率
func (r *Router) RegisterLayerRoutes(h *LayerHandler, auth, streamAuth, limit mux.MiddlewareFunc) {
	write := func(f http.HandlerFunc) http.Handler {
		if limit == nil {
			return f
		}
		return limit(f)
	}

	// registered before the subrouter so the header-only auth does not apply
	r.mux.Handle("/api/user-layers/events", streamAuth(http.HandlerFunc(h.Events))).Methods(http.MethodGet)

	s := r.mux.PathPrefix("/api/user-layers").Subrouter()
	s.Use(auth)
	s.HandleFunc("", h.List).Methods(http.MethodGet)
	s.Handle("", write(h.Create)).Methods(http.MethodPost)
	s.Handle("", write(h.DeleteLayer)).Methods(http.MethodDelete)
	s.HandleFunc("/history", h.History).Methods(http.MethodGet)
	s.HandleFunc("/history/export", h.ExportHistory).Methods(http.MethodGet)
	s.Handle("/{id}", write(h.Update)).Methods(http.MethodPut, http.MethodPatch)
	s.Handle("/{id}", write(h.Delete)).Methods(http.MethodDelete)
}
