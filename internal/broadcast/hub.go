package broadcast

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	clientSendSize = 32
)

// BearerSubprotocol lets browsers, which cannot set an Authorization header on
// a websocket, offer the token as Sec-WebSocket-Protocol: bearer, <token>.
const BearerSubprotocol = "bearer"

// Hub 浏览器订阅者（WebSocket）
// Each client gets a buffered queue; a client whose queue is full is
// dropped instead of stalling the publisher.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn    *websocket.Conn
	viewer  domain.Identity
	project string // empty: every project
	send    chan []byte
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{BearerSubprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is handled in front of the router
			},
		},
		logger:  logger,
		clients: map[*client]struct{}{},
	}
}

var _ Broadcaster = (*Hub)(nil)

// ServeWS upgrades the request and streams the events viewer may see for
// projectNumber (all projects when empty) until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, viewer domain.Identity, projectNumber string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade to websocket", zap.Error(err))
		return
	}

	c := &client{conn: conn, viewer: viewer, project: projectNumber, send: make(chan []byte, clientSendSize)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket subscriber connected", zap.String("project_number", projectNumber))

	go h.writePump(c)
	h.readPump(c)
}

// Publish queues the event for every matching subscriber.
func (h *Hub) Publish(_ context.Context, event domain.LayerEvent) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.project != "" && c.project != event.ProjectNumber {
			continue
		}
		if !CanSee(c.viewer, event) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("dropping slow websocket subscriber", zap.String("project_number", c.project))
			delete(h.clients, c)
			c.close()
		}
	}
	return nil
}

// CanSee reports whether viewer may receive event: the feature owner always,
// grantees listed in shared_with for created and updated features.
func CanSee(viewer domain.Identity, event domain.LayerEvent) bool {
	if viewer.UserID == "" {
		return false
	}
	switch d := event.Data.(type) {
	case *domain.Feature:
		return d != nil && (d.UserID == viewer.UserID || sharedWith(d.SharedWith, viewer))
	case domain.DeletedFeature:
		return d.UserID == viewer.UserID
	case *domain.DeletedFeature:
		return d != nil && d.UserID == viewer.UserID
	}
	return false
}

// shared_with 的 key 可以是 user_id 或 username
func sharedWith(grants map[string]any, viewer domain.Identity) bool {
	if _, ok := grants[viewer.UserID]; ok {
		return true
	}
	if viewer.Username == "" {
		return false
	}
	_, ok := grants[viewer.Username]
	return ok
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump 只处理 pong 与关闭；订阅者不发送业务消息
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
