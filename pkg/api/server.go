// Package api exposes the channel client over a local HTTP REST surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZentaChain/zentalk-channel/pkg/chat"
	"github.com/ZentaChain/zentalk-channel/pkg/store"
)

// Server is the HTTP control surface for one channel client.
type Server struct {
	client     *chat.Client
	archive    *store.Archive
	router     *gin.Engine
	port       int
	httpServer *http.Server
}

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	RateLimit    int // Requests per minute
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		RateLimit:    100,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates the HTTP API server. archive may be nil when the node
// runs without local persistence; the snapshot endpoints then report the
// feature as unavailable.
func NewServer(client *chat.Client, archive *store.Archive, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	server := &Server{
		client:  client,
		archive: archive,
		router:  router,
		port:    config.Port,
	}

	server.setupMiddleware(config)
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware(config *Config) {
	if config.EnableCORS {
		s.router.Use(CORSMiddleware())
	}
	if config.RateLimit > 0 {
		s.router.Use(RateLimitMiddleware(config.RateLimit))
	}
	s.router.Use(gin.Recovery())
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)

		messages := v1.Group("/messages")
		{
			messages.POST("", s.handleSend)
			messages.GET("", s.handleTimeline)
			messages.DELETE("", s.handleClearTimeline)
		}

		v1.GET("/history", s.handleQueryHistory)
		v1.PUT("/timeline/historical", s.handleHistoricalToggle)

		subs := v1.Group("/subscription")
		{
			subs.POST("", s.handleSubscribe)
			subs.DELETE("/:id", s.handleUnsubscribe)
			subs.DELETE("", s.handleUnsubscribeAll)
		}

		enc := v1.Group("/encryption")
		{
			enc.POST("/toggle", s.handleEncryptionToggle)
			enc.PUT("/scheme", s.handleSelectScheme)
			enc.POST("/keys", s.handleGenerateKeys)
			enc.GET("/key", s.handleExportKey)
			enc.PUT("/key", s.handleImportKey)
		}

		archive := v1.Group("/archive")
		{
			archive.GET("", s.handleArchiveInfo)
			archive.DELETE("", s.handlePruneArchive)
			archive.GET("/snapshot", s.handleExportSnapshot)
			archive.POST("/snapshot", s.handleImportSnapshot)
		}
	}

	s.router.GET("/health", s.handleHealth)
}

// Router returns the underlying handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("🌐 HTTP API server starting on port %d...\n", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("❌ Server error: %v\n", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Stop shuts the HTTP server down.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
