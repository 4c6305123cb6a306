// Package http implements the REST API of the matching and recommendation
// service: profile sync, candidate discovery and outcomes, the match list,
// and recommendations.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/application/command"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/application/query"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/interface/http/handlers"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodyBytes   int64

	// AllowedOrigins for CORS; empty disables CORS headers.
	AllowedOrigins []string

	// RateLimit is requests per second per client IP (0 = disabled).
	RateLimit      float64
	RateLimitBurst int

	// APIKeyHeader carries the API key on /api/ routes.
	APIKeyHeader string

	// APIKeyHashes are bcrypt hashes of accepted keys. Empty disables auth.
	APIKeyHashes []string

	// DefaultRecommendationCount is used when ?count is absent.
	DefaultRecommendationCount int

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:                       "0.0.0.0",
		Port:                       8080,
		ReadTimeout:                15 * time.Second,
		WriteTimeout:               60 * time.Second,
		IdleTimeout:                60 * time.Second,
		MaxHeaderBytes:             1 << 20,
		MaxBodyBytes:               1 << 16,
		AllowedOrigins:             []string{"*"},
		RateLimit:                  20,
		RateLimitBurst:             40,
		APIKeyHeader:               "X-API-Key",
		DefaultRecommendationCount: 10,
		Version:                    "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains the application handlers served over HTTP.
// A nil handler makes its routes answer 501.
type Dependencies struct {
	// Commands
	SyncProfile           *command.SyncProfileHandler
	DiscoverCandidates    *command.DiscoverCandidatesHandler
	LikeCandidate         *command.LikeCandidateHandler
	DismissCandidate      *command.DismissCandidateHandler
	GetRecommendations    *command.GetRecommendationsHandler
	LikeRecommendation    *command.LikeRecommendationHandler
	DismissRecommendation *command.DismissRecommendationHandler

	// Queries
	GetMatches          *query.GetMatchesHandler
	GetPotentialMatches *query.GetPotentialMatchesHandler

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	logger     *logger.Logger

	auth    *handlers.APIKeyAuth
	limiter *handlers.IPRateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	def := DefaultConfig()
	if config.APIKeyHeader == "" {
		config.APIKeyHeader = def.APIKeyHeader
	}
	if config.DefaultRecommendationCount <= 0 {
		config.DefaultRecommendationCount = def.DefaultRecommendationCount
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = def.MaxBodyBytes
	}
	if config.Version == "" {
		config.Version = def.Version
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
		auth:   handlers.NewAPIKeyAuth(config.APIKeyHeader, config.APIKeyHashes),
	}

	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	if config.RateLimit > 0 {
		s.limiter = handlers.NewIPRateLimiter(config.RateLimit, config.RateLimitBurst)
	}

	s.setupRoutes()
	s.handler = s.buildMiddlewareChain(s.router)

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1
	// ─────────────────────────────────────────────────────────────────────────
	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/profile/sync", s.handleSyncProfile)

	api.HandleFunc("POST /api/v1/users/{id}/candidates/discover", s.handleDiscoverCandidates)
	api.HandleFunc("GET /api/v1/users/{id}/candidates", s.handleGetCandidates)
	api.HandleFunc("POST /api/v1/users/{id}/candidates/{candidateID}/like", s.handleLikeCandidate)
	api.HandleFunc("POST /api/v1/users/{id}/candidates/{candidateID}/dismiss", s.handleDismissCandidate)

	api.HandleFunc("GET /api/v1/users/{id}/matches", s.handleGetMatches)

	api.HandleFunc("GET /api/v1/users/{id}/recommendations", s.handleGetRecommendations)
	api.HandleFunc("POST /api/v1/users/{id}/recommendations/{trackID}/like", s.handleLikeRecommendation)
	api.HandleFunc("POST /api/v1/users/{id}/recommendations/{trackID}/dismiss", s.handleDismissRecommendation)

	s.router.Handle("/api/", handlers.ChainHandler(api,
		handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes),
		s.auth.Middleware,
	))
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) buildMiddlewareChain(h http.Handler) http.Handler {
	chain := []handlers.MiddlewareFunc{
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
		handlers.SecurityHeadersMiddleware,
	}
	if len(s.config.AllowedOrigins) > 0 {
		chain = append(chain, s.corsMiddleware)
	}
	if s.limiter != nil {
		chain = append(chain, s.limiter.Middleware)
	}
	return handlers.ChainHandler(h, chain...)
}

// requestIDMiddleware adds a unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Latency(time.Since(start)),
			logger.String("ip", handlers.ClientIP(r)),
			logger.String("request_id", getRequestID(r.Context())),
		}
		if rw.statusCode >= http.StatusInternalServerError {
			s.logger.Warn("http request", fields...)
			return
		}
		s.logger.Info("http request", fields...)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", getRequestID(r.Context())),
				)
				writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, o := range s.config.AllowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Access-Token, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`

	// Partial is set when fewer items than requested were returned.
	Partial   bool `json:"partial,omitempty"`
	Requested int  `json:"requested,omitempty"`
	Returned  int  `json:"returned,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	s.writeJSONWithMeta(w, r, status, data, nil)
}

func (s *Server) writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = s.config.Version

	writeEnvelope(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: getRequestID(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, resp JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps error kinds to status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", logger.Err(err), logger.Int("status", status))
	} else {
		log.Debug(op+" rejected", logger.Err(err), logger.Int("status", status))
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(err)))
	}

	message := publicMessage(err)
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	writeJSONError(w, r, status, code, message)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsStateTransition(err):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, shared.ErrLockNotAcquired):
		return http.StatusConflict, "user_busy"
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests, "upstream_rate_limited"
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream_timeout"
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage returns the innermost DomainError message, never internal
// wrapping context.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// retryAfterSeconds reads the hint carried by catalog rate-limit errors.
func retryAfterSeconds(err error) int {
	var hinted interface{ RetryAfterDuration() time.Duration }
	if errors.As(err, &hinted) {
		if secs := int(hinted.RetryAfterDuration().Seconds()); secs > 0 {
			return secs
		}
	}
	return 1
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
