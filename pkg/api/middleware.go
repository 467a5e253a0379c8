package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/cuemby/riskfeed/pkg/log"
	"github.com/cuemby/riskfeed/pkg/metrics"
)

// accessLogger logs every request and records request metrics under the
// matched route pattern
func (s *Server) accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			duration := timer.Duration()

			metrics.APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			timer.ObserveDurationVec(metrics.APIRequestDuration, route)

			s.logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Str("remote", r.RemoteAddr).
				Msg("access")
		}()

		next.ServeHTTP(ww, r)
	})
}

// cors allows any origin, like the dashboard expects during development
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// maxLimiters bounds the per-IP limiter table between cleanups
const maxLimiters = 10000

// RateLimiter throttles requests per client IP
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	mu     sync.Mutex
	byIP   map[string]*rate.Limiter
	stopCh chan struct{}
	once   sync.Once
	start  sync.Once
}

// NewRateLimiter allows perSecond requests per client IP with the given burst
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:  rate.Limit(perSecond),
		burst:  burst,
		byIP:   make(map[string]*rate.Limiter),
		stopCh: make(chan struct{}),
	}
}

// Allow reports whether the request's client may proceed
func (l *RateLimiter) Allow(r *http.Request) bool {
	clientIP := getClientIP(r)

	l.mu.Lock()
	limiter, exists := l.byIP[clientIP]
	if !exists {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.byIP[clientIP] = limiter
	}
	l.mu.Unlock()

	if !limiter.Allow() {
		log.Logger.Warn().Str("component", "api").Str("client_ip", clientIP).Msg("Stream rate limit exceeded")
		return false
	}
	return true
}

// Middleware rejects rate-limited requests with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r) {
			writeError(w, http.StatusTooManyRequests, "Too many stream connections")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops the limiter table once it grows past maxLimiters
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.byIP) > maxLimiters {
		log.Logger.Info().Int("count", len(l.byIP)).Msg("Clearing rate limiters")
		l.byIP = make(map[string]*rate.Limiter)
	}
}

// StartCleanupJob runs Cleanup hourly until Stop
func (l *RateLimiter) StartCleanupJob() {
	l.start.Do(func() {
		ticker := time.NewTicker(time.Hour)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					l.Cleanup()
				case <-l.stopCh:
					return
				}
			}
		}()
	})
}

// Stop ends the cleanup job
func (l *RateLimiter) Stop() {
	l.once.Do(func() { close(l.stopCh) })
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the chain
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	// Try X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
