package main

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sanitrack/internal/apperr"
	"sanitrack/internal/auth"
	"sanitrack/internal/models"
)

// Handler wraps the router with the middleware that must also see
// unmatched routes and preflight requests.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.cors(s.router))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(r) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// identify verifies the bearer token, if any. A nil identity with a nil
// error means the request carried no token.
func (s *Server) identify(r *http.Request) (*models.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil
	}
	return s.auth.Verify(token)
}

// optional attaches the caller's identity when a valid token is sent.
// Bad tokens are treated as no token.
func (s *Server) optional(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := s.identify(r); err == nil && id != nil {
			r = r.WithContext(auth.WithIdentity(r.Context(), id))
		}
		h(w, r)
	})
}

// protected requires a valid token and, when roles are given, one of
// those roles.
func (s *Server) protected(h http.HandlerFunc, roles ...models.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.identify(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if id == nil {
			s.fail(w, r, apperr.Authentication("no token provided"))
			return
		}
		if len(roles) > 0 && !hasRole(id, roles) {
			s.fail(w, r, apperr.Authorization("insufficient permissions"))
			return
		}
		h(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func hasRole(id *models.Identity, roles []models.Role) bool {
	for _, role := range roles {
		if id.Role == role {
			return true
		}
	}
	return false
}

// limited applies the per-client auth rate limit.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, Response{
				Success: false,
				Message: "too many requests, please try again later",
			})
			return
		}
		h(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimiter hands out one token bucket per client, refilled at
// perMinute tokens a minute. Idle buckets are pruned.
type rateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*visitor
	perMinute int
	lastPrune time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const visitorIdle = 10 * time.Minute

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &rateLimiter{
		clients:   make(map[string]*visitor),
		perMinute: perMinute,
		lastPrune: time.Now(),
	}
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > time.Minute {
		for k, v := range l.clients {
			if now.Sub(v.lastSeen) > visitorIdle {
				delete(l.clients, k)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.clients[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.clients[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
