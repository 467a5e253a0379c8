package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cuemby/riskfeed/pkg/events"
	"github.com/cuemby/riskfeed/pkg/log"
	"github.com/cuemby/riskfeed/pkg/metrics"
	"github.com/cuemby/riskfeed/pkg/query"
	"github.com/cuemby/riskfeed/pkg/scheduler"
	"github.com/cuemby/riskfeed/pkg/synth"
)

const (
	DefaultWriteTimeout = 5 * time.Second
	DefaultPingInterval = 15 * time.Second
)

// Hub is the push registry streams subscribe to
type Hub interface {
	Subscribe() (*events.Subscription, error)
	Unsubscribe(sub *events.Subscription)
}

// FeedController exposes runtime control of the synthesis feed
type FeedController interface {
	Status() scheduler.Status
	Pause() scheduler.Status
	Resume() scheduler.Status
	RunOnce() (*synth.Result, error)
}

// Server serves the dashboard API and the push streams
type Server struct {
	router *chi.Mux
	http   *http.Server
	logger zerolog.Logger

	query *query.Service
	hub   Hub
	feed  FeedController

	limiter      *RateLimiter
	writeTimeout time.Duration
	pingInterval time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithFeed enables the /api/feed control endpoints
func WithFeed(feed FeedController) Option {
	return func(s *Server) {
		s.feed = feed
	}
}

// WithStreamRateLimit limits new stream connections per client IP
func WithStreamRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.limiter = NewRateLimiter(perSecond, burst)
	}
}

// WithWriteTimeout bounds each push write
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithPingInterval sets the keep-alive period on idle streams
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// NewServer creates the HTTP API
func NewServer(q *query.Service, hub Hub, opts ...Option) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		logger:       log.WithComponent("api"),
		query:        q,
		hub:          hub,
		writeTimeout: DefaultWriteTimeout,
		pingInterval: DefaultPingInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()

	// No WriteTimeout: streams are long-lived and bound each write themselves
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(s.accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler)
		r.Get("/ready", metrics.ReadyHandler())
		r.Get("/metrics", s.handleMetrics)

		r.Get("/alerts", s.handleListAlerts)
		r.Get("/cases", s.handleListCases)
		r.Get("/cases/{id}", s.handleGetCase)
		r.Patch("/cases/{id}", s.handleUpdateCase)
		r.Get("/transactions", s.handleListTransactions)

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Get("/stream", s.handleStream)
			r.Get("/ws", s.handleWebSocket)
		})

		if s.feed != nil {
			r.Route("/feed", func(r chi.Router) {
				r.Get("/status", s.handleFeedStatus)
				r.Post("/pause", s.handleFeedPause)
				r.Post("/resume", s.handleFeedResume)
				r.Post("/run", s.handleFeedRun)
			})
		}
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr and serves until Shutdown
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentAPI, false, err.Error())
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	if s.limiter != nil {
		s.limiter.StartCleanupJob()
	}

	metrics.UpdateComponent(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("API server listening")

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.UpdateComponent(metrics.ComponentAPI, false, err.Error())
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for requests to finish.
// Close the hub first so open streams return.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	return s.http.Shutdown(ctx)
}
