// Package gateway implements Aria's session/security layer: the WebSocket
// endpoint that issues per-connection keys and runs the encrypted
// request/response protocol, the action dispatcher gating operations on
// authentication state, and the plain HTTP surface that redeems ephemeral
// resource tokens.
package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/me/aria/internal/config"
	"github.com/me/aria/internal/media"
	"github.com/me/aria/internal/resource"
	"github.com/me/aria/internal/store"
)

// eventLogSize bounds the in-memory recent-events ring served by
// get_system_logs.
const eventLogSize = 64

// Server is the Aria gateway server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	resources *resource.Store
	library   *media.Library
	fetcher   media.Fetcher // optional; nil means missing songs fail
	upgrader  websocket.Upgrader
	table     map[Action]actionSpec
	shutdown  func() // optional; invoked by restart_server

	eventsMu sync.Mutex
	events   []string
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithFetcher sets the collaborator used to acquire songs missing from
// the library.
func WithFetcher(f media.Fetcher) Option {
	return func(s *Server) {
		s.fetcher = f
	}
}

// WithShutdown sets the function restart_server uses to stop the process.
func WithShutdown(fn func()) Option {
	return func(s *Server) {
		s.shutdown = fn
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, res *resource.Store, lib *media.Library, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "gateway"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		resources: res,
		library:   lib,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The protocol's own key exchange is the access control;
			// browser origin checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.table = s.actions()
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/ws", s.handleWS)
	r.Get("/resource/{token}", s.handleResourceFetch)
	r.Get("/healthz", s.handleHealth)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleWS upgrades the connection and runs its session to completion.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}

	sess, err := newSession("conn_"+uuid.New().String()[:8], conn, s)
	if err != nil {
		s.logger.Error("issue session key", "error", err)
		conn.Close()
		return
	}
	sess.run(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}` + "\n"))
}

// recordEvent appends to the bounded recent-events ring.
func (s *Server) recordEvent(format string, args ...any) {
	line := time.Now().UTC().Format(time.RFC3339) + " " + fmt.Sprintf(format, args...)
	s.eventsMu.Lock()
	s.events = append(s.events, line)
	if len(s.events) > eventLogSize {
		s.events = s.events[len(s.events)-eventLogSize:]
	}
	s.eventsMu.Unlock()
}

// recentEvents returns up to n of the newest event lines, oldest first.
func (s *Server) recentEvents(n int) []string {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]string, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}
