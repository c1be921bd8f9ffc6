package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/config"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/handler"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/middleware"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/pkg/logger"
	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/service"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize storage backend
	storage, err := service.NewStorage(&cfg.Storage)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if ms, ok := storage.(*service.MinioStorage); ok {
		if err := ms.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure MINIO bucket", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("storage initialized", "backend", cfg.Storage.Backend)

	// Job history archive (optional)
	history, err := service.OpenJobHistory(cfg.History.Path)
	if err != nil {
		slog.Error("failed to open job history", "error", err)
		os.Exit(1)
	}
	if history != nil {
		defer history.Close()
		slog.Info("job history enabled", "path", cfg.History.Path)
	}

	// Job ledger
	ledger := service.NewJobLedger(&cfg.Store)

	// Calculator availability is resolved per run; log the configured mode once.
	if cfg.Calculator.Endpoint == "" {
		slog.Warn("no calculator endpoint configured, analyses will run in degraded mode")
	} else {
		slog.Info("calculator configured",
			"endpoint", cfg.Calculator.Endpoint,
			"model", cfg.Calculator.Model,
			"device", cfg.Calculator.Device,
		)
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	analysisHandler := handler.NewAnalysisHandler(cfg, storage, ledger, history)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	// 100 requests per minute per client, of which at most 10 may be
	// analysis submissions.
	router.Use(middleware.RateLimit(100, 10, time.Minute))

	// Health check endpoint
	router.GET("/health", analysisHandler.Health)

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/upload", analysisHandler.Upload)
		protected.POST("/analyze", analysisHandler.Analyze)
		protected.GET("/jobs", analysisHandler.List)
		protected.GET("/history", analysisHandler.History)
		protected.GET("/jobs/:id", analysisHandler.Get)
		protected.GET("/jobs/:id/status", analysisHandler.GetStatus)
		protected.GET("/jobs/:id/download/:type", analysisHandler.Download)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
