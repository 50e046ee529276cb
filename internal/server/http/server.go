// Package http implements the status API and control websocket for grouppilot.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianly1003/grouppilot/internal/journal"
	"github.com/brianly1003/grouppilot/internal/rpc"
	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/security"
	"github.com/brianly1003/grouppilot/internal/server/http/middleware"
	"github.com/brianly1003/grouppilot/internal/session"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

// Sessions is the read side of the session manager.
type Sessions interface {
	Snapshot(userID string) (session.Snapshot, bool)
	Snapshots() []session.Snapshot
}

// Journal reads recent audit entries.
type Journal interface {
	Recent(ctx context.Context, userID string, limit int) ([]journal.Entry, error)
}

// Options configures the server.
type Options struct {
	Host           string
	Port           int
	Version        string
	RequestTimeout time.Duration
	// RateLimit is requests per minute per client IP on /api. 0 disables it.
	RateLimit int
	Pprof     bool
	// AuthToken, when set, is required on everything but /health.
	AuthToken      string
	AllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies []*net.IPNet
}

// Server is the HTTP API server.
type Server struct {
	opts      Options
	router    *mux.Router
	server    *http.Server
	sessions  Sessions
	journal   Journal
	control   *rpc.Server
	registry  *handler.Registry
	limiter   *middleware.RateLimiter
	auth      *security.TokenAuth
	upgrader  websocket.Upgrader
	startedAt time.Time

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server. journal and control may be nil, which disables the
// journal endpoint and the websocket endpoints.
func New(opts Options, sessions Sessions, journal Journal, control *rpc.Server, registry *handler.Registry) *Server {
	s := &Server{
		opts:      opts,
		router:    mux.NewRouter(),
		sessions:  sessions,
		journal:   journal,
		control:   control,
		registry:  registry,
		auth:      security.NewTokenAuth(opts.AuthToken),
		startedAt: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin:     security.NewOriginChecker(opts.AllowedOrigins).CheckOrigin,
	}
	if opts.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.WithMaxRequests(opts.RateLimit), middleware.WithWindow(time.Minute))
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(requestLoggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.auth.Middleware)
	if s.limiter != nil {
		keys := middleware.IPKeyExtractor
		if len(s.opts.TrustedProxies) > 0 {
			keys = security.ClientIPExtractor(s.opts.TrustedProxies)
		}
		api.Use(middleware.RateLimitMiddleware(s.limiter, keys))
	}
	if s.opts.RequestTimeout > 0 {
		api.Use(timeoutMiddleware(s.opts.RequestTimeout))
	}
	api.HandleFunc("/sessions", s.handleSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{user_id}", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{user_id}/journal", s.handleJournal).Methods(http.MethodGet)
	api.HandleFunc("/rpc/discover", s.handleOpenRPCDiscover).Methods(http.MethodGet)

	if s.control != nil {
		control := s.auth.Middleware(http.HandlerFunc(s.handleControl))
		s.router.Handle("/rpc", control)
		s.router.Handle("/ws/events", control)
	}

	// Swagger UI for the REST endpoints; the document comes from SwaggerInfo.
	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	)).Methods(http.MethodGet)

	debug := s.router.PathPrefix("/debug").Subrouter()
	debug.Use(s.auth.Middleware)
	NewDebugHandler(s.opts.Pprof, s.startedAt).Register(debug)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server starting")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Run starts the server and stops it when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("HTTP server stopping")

	if s.limiter != nil {
		s.limiter.Close()
	}

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Sessions      int    `json:"sessions"`
	Connected     int    `json:"connected"`
}

// handleHealth reports liveness and session counts.
//
//	@Summary	Liveness and session counts
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snaps := s.sessions.Snapshots()
	connected := 0
	for _, snap := range snaps {
		if snap.Connected {
			connected++
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.opts.Version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Sessions:      len(snaps),
		Connected:     connected,
	})
}

// handleSessions lists every session.
//
//	@Summary	List sessions
//	@Tags		sessions
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	map[string][]session.Snapshot
//	@Failure	401	{object}	map[string]string
//	@Router		/api/sessions [get]
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	snaps := s.sessions.Snapshots()
	if snaps == nil {
		snaps = []session.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": snaps})
}

// handleSession returns one session.
//
//	@Summary	Get one session
//	@Tags		sessions
//	@Produce	json
//	@Security	BearerAuth
//	@Param		user_id	path		string	true	"Chat user id"
//	@Success	200		{object}	session.Snapshot
//	@Failure	404		{object}	map[string]string
//	@Router		/api/sessions/{user_id} [get]
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	snap, ok := s.sessions.Snapshot(userID)
	if !ok {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleJournal returns the newest journal entries of a user.
//
//	@Summary	Recent approvals and renames
//	@Tags		journal
//	@Produce	json
//	@Security	BearerAuth
//	@Param		user_id	path		string	true	"Chat user id"
//	@Param		limit	query		int		false	"Maximum entries"
//	@Success	200		{object}	map[string][]journal.Entry
//	@Failure	400		{object}	map[string]string
//	@Failure	503		{object}	map[string]string
//	@Router		/api/sessions/{user_id}/journal [get]
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSONError(w, "journal is disabled", http.StatusServiceUnavailable)
		return
	}

	limit := defaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := parsePositive(raw)
		if err != nil {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxJournalLimit)
	}

	entries, err := s.journal.Recent(r.Context(), mux.Vars(r)["user_id"], limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read journal")
		writeJSONError(w, "failed to read journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func parsePositive(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("not positive: %d", n)
	}
	return n, nil
}

// requestLoggingMiddleware logs all incoming requests.
func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// timeoutMiddleware answers 504 when a handler outlives timeout.
func timeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			tw := &timeoutResponseWriter{ResponseWriter: w}

			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				if tw.wroteHeader {
					return
				}
				log.Warn().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Dur("timeout", timeout).
					Msg("request timed out")
				writeJSONError(w, "request timed out", http.StatusGatewayTimeout)
			}
		})
	}
}

// timeoutResponseWriter drops writes once the request timed out.
type timeoutResponseWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutResponseWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutResponseWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.wroteHeader = true
	return tw.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
