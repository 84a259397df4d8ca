// Package api serves the flight feed over HTTP and WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/skyroute/flightfeed/internal/auth"
	"github.com/skyroute/flightfeed/internal/feed"
	"github.com/skyroute/flightfeed/pkg/logger"
)

// DirectoryStatus is the part of the enrichment directory the status
// endpoint reports on.
type DirectoryStatus interface {
	Healthy(ctx context.Context) bool
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// Options configures a Server.
type Options struct {
	Feed *feed.Service
	Auth *auth.Service

	// Directory and Warmer are optional
	Directory DirectoryStatus
	Warmer    *feed.Warmer

	AllowedOrigins []string
	StreamInterval time.Duration
	Logger         *logger.Logger
}

// Server holds the HTTP router and its dependencies
type Server struct {
	router         *chi.Mux
	feed           *feed.Service
	auth           *auth.Service
	directory      DirectoryStatus
	warmer         *feed.Warmer
	streamInterval time.Duration
	upgrader       websocket.Upgrader
	log            *logger.Logger
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = 5 * time.Second
	}
	if opts.Auth == nil {
		opts.Auth = auth.NewService(auth.Config{})
	}

	s := &Server{
		router:         chi.NewRouter(),
		feed:           opts.Feed,
		auth:           opts.Auth,
		directory:      opts.Directory,
		warmer:         opts.Warmer,
		streamInterval: opts.StreamInterval,
		log:            opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
	s.setupRoutes(opts.AllowedOrigins)
	return s
}

// ServeHTTP lets the Server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(allowedOrigins []string) {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/ws/flights", s.handleStream)

	// The website calls /flights directly; API clients use the versioned path.
	r.Group(s.feedRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(s.feedRoutes)

		// Public routes
		r.Post("/auth/login", s.handleLogin)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/system/status", s.handleSystemStatus)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(auth.RoleAdmin))
				r.Post("/cache/purge", s.handleCachePurge)
				r.Post("/token/invalidate", s.handleTokenInvalidate)
			})
		})
	})
}

func (s *Server) feedRoutes(r chi.Router) {
	r.Use(middleware.Compress(5))
	r.Get("/flights", s.handleGetFlights)
	r.Post("/flights", s.handleLookup)
}

// originChecker mirrors the CORS policy for WebSocket upgrades.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
