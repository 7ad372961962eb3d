package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nourselim0/http-process-wrapper/internal/api/handler"
	"github.com/nourselim0/http-process-wrapper/internal/api/middleware"
	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
	"github.com/nourselim0/http-process-wrapper/internal/core/service"
	"github.com/nourselim0/http-process-wrapper/internal/supervisor"
	"github.com/nourselim0/http-process-wrapper/pkg/config"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server
	config *config.Config
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	authService *service.AuthService,
	eventRecorder *service.EventRecorder,
	sup *supervisor.Supervisor,
	clientRepo repository.ClientRepository,
) *Server {
	// Set Gin mode
	if !cfg.IsDevMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandlerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	procHandler := handler.NewProcHandler(sup, eventRecorder)
	clientHandler := handler.NewClientHandler(clientRepo, authService)

	// Public routes (no auth required)
	auth := router.Group("/auth")
	{
		auth.POST("/authorize", authHandler.Authorize)
		auth.POST("/token", authHandler.Token)
	}

	// Protected routes (auth required)
	authMiddleware := middleware.AuthMiddleware(authService, cfg.APIKey)

	// Supervised processes. Queries need procs:read, lifecycle commands
	// and stdin need procs:control.
	procs := router.Group("/procs")
	procs.Use(authMiddleware)

	reads := procs.Group("", middleware.RequireScope(domain.ScopeProcsRead))
	{
		reads.GET("", procHandler.ListProcs)
		reads.GET("/:name", procHandler.GetProc)
		reads.GET("/:name/output", procHandler.ReadOutput)
		reads.GET("/:name/tail", procHandler.Tail)
		reads.GET("/:name/tail-text", procHandler.TailText)
		reads.GET("/:name/stream", procHandler.StreamOutput)
		reads.GET("/:name/events", procHandler.ListEvents)
	}

	controls := procs.Group("", middleware.RequireScope(domain.ScopeProcsControl))
	{
		controls.POST("", procHandler.CreateProc)
		controls.POST("/:name/start", procHandler.StartProc)
		controls.POST("/:name/stop", procHandler.StopProc)
		controls.POST("/:name/restart", procHandler.RestartProc)
		controls.POST("/:name/write", procHandler.WriteInput)
		controls.DELETE("/:name", procHandler.DeleteProc)
	}

	// Client management is admin-only
	clients := router.Group("/clients")
	clients.Use(authMiddleware, middleware.RequireScope(domain.ScopeAdmin))
	{
		clients.POST("", clientHandler.CreateClient)
		clients.GET("", clientHandler.ListClients)
		clients.GET("/:id", clientHandler.GetClient)
		clients.PUT("/:id", clientHandler.UpdateClient)
		clients.DELETE("/:id", clientHandler.DeleteClient)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	server := &Server{
		router: router,
		config: cfg,
	}

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)

	s.srv = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Start with or without SSL
	if s.config.SSLCert != "" && s.config.SSLKey != "" {
		return s.srv.ListenAndServeTLS(s.config.SSLCert, s.config.SSLKey)
	}

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
