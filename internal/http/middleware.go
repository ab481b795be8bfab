package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/burnspe2144/env-reporting-backend/internal/broadcast"
	"github.com/burnspe2144/env-reporting-backend/internal/identity"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// logRequests 访问日志
func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, req)
		r.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Authenticate 校验 Authorization: Bearer <token>，并把调用者放入 context
func Authenticate(provider identity.Provider) func(http.Handler) http.Handler {
	return authenticate(provider, headerToken)
}

// AuthenticateStream is Authenticate for the websocket route. Browsers cannot
// set headers on a websocket, so the token may also come from the
// access_token (or token) query parameter or from
// Sec-WebSocket-Protocol: bearer, <token>.
func AuthenticateStream(provider identity.Provider) func(http.Handler) http.Handler {
	return authenticate(provider, func(r *http.Request) (string, bool) {
		if token, ok := headerToken(r); ok {
			return token, true
		}
		q := r.URL.Query()
		for _, key := range []string{"access_token", "token"} {
			if token := strings.TrimSpace(q.Get(key)); token != "" {
				return token, true
			}
		}
		return subprotocolToken(r)
	})
}

func authenticate(provider identity.Provider, extract func(*http.Request) (string, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extract(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, Fail("Access token required"))
				return
			}
			id, err := provider.Verify(token)
			if err != nil {
				writeJSON(w, http.StatusForbidden, Fail("Invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

func headerToken(r *http.Request) (string, bool) {
	return identity.BearerToken(r.Header.Get("Authorization"))
}

// subprotocolToken 取 "bearer" 之后的那一项
func subprotocolToken(r *http.Request) (string, bool) {
	protocols := websocket.Subprotocols(r)
	for i, p := range protocols {
		if strings.EqualFold(p, broadcast.BearerSubprotocol) && i+1 < len(protocols) {
			return protocols[i+1], protocols[i+1] != ""
		}
	}
	return "", false
}

// RateLimiter 按调用者（无身份时按远端地址）限流
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: map[string]*limiterEntry{},
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether key may make another request now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.limiters[key]
	if !ok {
		l.evict(now)
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// evict drops limiters idle longer than ttl; caller holds mu.
func (l *RateLimiter) evict(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.ttl {
			delete(l.limiters, k)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if id, ok := identity.FromContext(r.Context()); ok {
			key = "user:" + id.UserID
		}
		if !l.Allow(key) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, Fail("Too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
