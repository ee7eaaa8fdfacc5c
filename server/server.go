package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/xiaoyuanzhu-com/local-first-todo/db"
	"github.com/xiaoyuanzhu-com/local-first-todo/feed"
	"github.com/xiaoyuanzhu-com/local-first-todo/gateway"
	"github.com/xiaoyuanzhu-com/local-first-todo/kvstore"
	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/memstore"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
	"github.com/xiaoyuanzhu-com/local-first-todo/readmodel"
	"github.com/xiaoyuanzhu-com/local-first-todo/replica"
	"github.com/xiaoyuanzhu-com/local-first-todo/workers/compaction"
)

// Server owns and coordinates all application components
type Server struct {
	cfg *Config

	// Components (owned by server). Which stores are set depends on the
	// variant.
	database     *db.DB
	shape        *feed.Shape
	compactor    *compaction.Worker
	kv           *kvstore.Store
	replicas     *replica.Initializer
	notifService *notifications.Service

	gateway *gateway.Gateway
	live    *readmodel.LiveQuery

	// Shutdown context - cancelled when server is shutting down.
	// Long-running handlers (WebSocket, SSE) should listen to this.
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	background     sync.WaitGroup

	// mu orders Start against Shutdown
	mu      sync.Mutex
	started bool

	// HTTP
	router *gin.Engine
	http   *http.Server
}

// New creates a new server with all components initialized
func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:            cfg,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}

	// 1. Create notifications service
	log.Info().Msg("initializing notifications service")
	s.notifService = notifications.NewService()

	// 2. Open the store for the variant
	log.Info().Str("variant", cfg.Variant).Msg("initializing store")
	store, err := s.openStore()
	if err != nil {
		cancel()
		return nil, err
	}

	// 3. Mutation gateway and read model over the store
	s.gateway = gateway.New(store)
	s.live = readmodel.New(store, s.notifService)

	// 4. Setup HTTP router and server
	s.setupRouter()
	s.http = &http.Server{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:  s.router,
		ErrorLog: log.StdErrorLogger(), // Route Go's internal HTTP errors through zerolog
	}

	log.Info().Msg("server initialized successfully")
	return s, nil
}

func (s *Server) openStore() (gateway.Store, error) {
	switch s.cfg.Variant {
	case VariantSQL:
		database, err := db.Open(s.cfg.ToDBConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.database = database
		s.shape = feed.NewShape(database, s.notifService, s.cfg.LongPollTimeout)
		s.compactor = compaction.NewWorker(s.cfg.ToCompactionConfig(), database)
		return db.NewTodoStore(database, s.notifService), nil

	case VariantReplica:
		s.replicas = replica.NewInitializer(s.cfg.ToReplicaConfig(), s.notifService)
		return s.replicas.Store(), nil

	case VariantKV:
		kv, err := kvstore.Open(s.cfg.KVPath, s.notifService)
		if err != nil {
			return nil, fmt.Errorf("failed to open kv store: %w", err)
		}
		s.kv = kv
		return kv, nil

	default:
		return memstore.New(s.notifService), nil
	}
}

// setupRouter creates and configures the Gin router
func (s *Server) setupRouter() {
	// Set Gin mode
	if !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	s.router = gin.New()

	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(log.GinLogger())

	// CORS for development
	if s.cfg.IsDevelopment() {
		s.router.Use(s.corsMiddleware())
	}

	// Security headers (production only)
	if !s.cfg.IsDevelopment() {
		s.router.Use(s.securityHeadersMiddleware())
	}

	// Gzip compression (skip SSE, long-poll and WebSocket endpoints)
	s.router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		"/api/notifications/stream", // SSE - needs streaming
		"/api/todos/live",           // SSE - needs streaming
		"/v1/shape/",                // long-poll and WebSocket
	})))

	// Trust proxy headers
	s.router.SetTrustedProxies(nil)

	// Note: API routes should be set up by calling code
	// to avoid import cycles
}

// corsMiddleware handles CORS for development environments
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":  true,
			"http://localhost:12345": true,
		}

		if allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Shape-Handle, X-Shape-Offset")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// securityHeadersMiddleware adds security headers for production
func (s *Server) securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// HSTS - enforce HTTPS for 1 year, include subdomains
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		// Prevent MIME type sniffing
		c.Header("X-Content-Type-Options", "nosniff")

		// Clickjacking protection
		c.Header("X-Frame-Options", "SAMEORIGIN")

		// Referrer policy - don't leak full URLs to other origins
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}

// StartServices starts the background services of the variant without
// the HTTP listener. It returns http.ErrServerClosed once Shutdown has
// begun, and does nothing on a second call.
func (s *Server) StartServices() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdownCtx.Err() != nil {
		return http.ErrServerClosed
	}
	if s.started {
		return nil
	}
	s.started = true

	log.Info().Msg("starting server components")

	if s.compactor != nil {
		s.compactor.Start()
	}

	if s.kv != nil {
		if err := s.kv.Watch(); err != nil {
			return fmt.Errorf("failed to watch kv store: %w", err)
		}
	}

	if s.replicas != nil {
		s.background.Add(1)
		go s.activateReplica()
	}
	return nil
}

// activateReplica retries activation until it succeeds or the server
// shuts down. Until then the API answers 503.
func (s *Server) activateReplica() {
	defer s.background.Done()

	backoff := 250 * time.Millisecond
	for {
		_, err := s.replicas.Activate(s.shutdownCtx)
		if err == nil || errors.Is(err, replica.ErrClosed) {
			return
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("replica activation failed")

		select {
		case <-s.shutdownCtx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 10*time.Second)
	}
}

// Start starts all background services and the HTTP server
func (s *Server) Start() error {
	if err := s.StartServices(); err != nil {
		return err
	}

	log.Info().
		Str("addr", s.http.Addr).
		Str("env", s.cfg.Env).
		Str("variant", s.cfg.Variant).
		Msg("HTTP server starting")

	// Start HTTP server (blocks). Returns http.ErrServerClosed at once if
	// Shutdown already ran.
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server")

	// 1. Cancel the shutdown context to signal all long-running handlers (WebSocket, SSE)
	log.Info().Msg("signaling handlers to stop")
	s.mu.Lock()
	s.shutdownCancel()
	s.mu.Unlock()

	// Give handlers a moment to process the cancellation and close connections.
	time.Sleep(100 * time.Millisecond)

	// 2. Close notification service to cleanly disconnect SSE clients and
	// wake long-poll readers
	s.notifService.Shutdown()

	// 3. Shutdown HTTP server (stop accepting new requests and wait for existing ones)
	if err := s.http.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// Stop background services (in reverse order of startup)
	s.background.Wait()
	if s.replicas != nil {
		s.replicas.Teardown()
	}
	if s.kv != nil {
		if err := s.kv.Close(); err != nil {
			log.Error().Err(err).Msg("kv watcher close error")
		}
	}
	if s.compactor != nil {
		s.compactor.Stop()
	}

	// Close database last
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Error().Err(err).Msg("database close error")
			return err
		}
	}

	log.Info().Msg("server shutdown complete")
	return nil
}

// Ready reports whether the store can serve requests. Only the replica
// variant is ever not ready.
func (s *Server) Ready() error {
	if s.replicas != nil {
		_, err := s.replicas.Replica()
		return err
	}
	return nil
}

// Component accessors for API handlers
func (s *Server) Config() *Config                       { return s.cfg }
func (s *Server) DB() *db.DB                            { return s.database }
func (s *Server) Shape() *feed.Shape                    { return s.shape }
func (s *Server) Compactor() *compaction.Worker         { return s.compactor }
func (s *Server) Gateway() *gateway.Gateway             { return s.gateway }
func (s *Server) LiveQuery() *readmodel.LiveQuery       { return s.live }
func (s *Server) Notifications() *notifications.Service { return s.notifService }
func (s *Server) Router() *gin.Engine                   { return s.router }
func (s *Server) ShutdownContext() context.Context      { return s.shutdownCtx }
