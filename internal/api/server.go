package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"aquant/internal/analysis"
	"aquant/internal/auth"
	"aquant/internal/batch"
	"aquant/internal/cache"
	"aquant/internal/config"
	"aquant/internal/database"
	"aquant/internal/logger"
	"aquant/internal/monitoring"
	"aquant/internal/scheduler"
)

// Deps are the services the API server exposes. Analysis and Runner are
// required; the rest may be nil and degrade the matching endpoints.
type Deps struct {
	Analysis  *analysis.Service
	Runner    *batch.Runner
	Users     *auth.UserService
	DB        *database.DB
	Cacher    cache.Cacher
	Metrics   *monitoring.Metrics
	Scheduler *scheduler.Scheduler
}

// Server represents the API server
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server

	handlers *Handlers
	authH    *AuthHandlers
	wsH      *WebSocketHandler

	accessJWT  *auth.JWTManager
	refreshJWT *auth.JWTManager
	metrics    *monitoring.Metrics
	log        logger.Logger
}

// NewServer creates a new API server around pre-wired services
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Analysis == nil {
		return nil, fmt.Errorf("analysis service is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("batch runner is required")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	accessJWT := auth.NewJWTManager(cfg.Auth.SecretKey, cfg.Auth.TokenDuration)
	// 刷新令牌有效期固定为访问令牌的7倍
	refreshJWT := auth.NewJWTManager(cfg.Auth.SecretKey+":refresh", 7*cfg.Auth.TokenDuration)

	jobs := newJobStore()
	wsH := NewWebSocketHandler(jobs, deps.Metrics)

	server := &Server{
		config:     cfg,
		router:     router,
		handlers:   NewHandlers(deps.Analysis, deps.Runner, jobs, wsH, deps.DB, deps.Cacher, deps.Scheduler),
		wsH:        wsH,
		accessJWT:  accessJWT,
		refreshJWT: refreshJWT,
		metrics:    deps.Metrics,
		log:        logger.GetGlobalLogger(),
	}
	if deps.Users != nil {
		server.authH = NewAuthHandlers(deps.Users, accessJWT, refreshJWT)
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware(s.config.CORS))
	s.router.Use(rateLimitMiddleware(s.config.RateLimit))
	if s.metrics != nil {
		s.router.Use(s.metrics.MetricsMiddleware())
	}

	// Swagger documentation
	if s.config.App.Env != "production" {
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Prometheus metrics
	if s.config.Monitoring.PrometheusEnabled {
		s.router.GET(s.config.Monitoring.PrometheusPath, gin.WrapH(monitoring.PrometheusHandler()))
	}

	s.router.GET("/health", s.handlers.Health)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/strategies", s.handlers.Strategies)
		v1.GET("/search", s.handlers.Search)

		if s.authH != nil {
			authGroup := v1.Group("/auth")
			{
				authGroup.POST("/login", s.authH.Login)
				authGroup.POST("/register", s.authH.Register)
				authGroup.POST("/refresh", s.authH.Refresh)
				authGroup.GET("/profile", s.accessJWT.AuthMiddleware(), s.authH.Profile)
			}
		}

		protected := v1.Group("")
		// 未接数据库时无法注册账号，分析接口退化为开放访问
		if s.authH != nil {
			protected.Use(s.accessJWT.AuthMiddleware())
		}
		{
			protected.GET("/analyze/:code", s.handlers.Analyze)
			protected.POST("/batch", s.handlers.BatchSubmit)
			protected.GET("/batch/:id", s.handlers.BatchStatus)
		}
	}

	// WebSocket routes
	ws := s.router.Group("/ws")
	{
		ws.GET("/batch/:id", s.wsH.BatchStream)
	}
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	s.log.Info("Starting API server",
		"host", s.config.Server.Host, "port", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("Shutting down API server")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
