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

	"github.com/Amaz3n/inkwell/config"
	"github.com/Amaz3n/inkwell/handler"
	"github.com/Amaz3n/inkwell/middleware"
	"github.com/Amaz3n/inkwell/pkg/logger"
	"github.com/Amaz3n/inkwell/service"
	"github.com/Amaz3n/inkwell/store"
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

	// A misconfigured signing workflow must never take a write
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded successfully")

	// Record store: postgres when configured, in-memory otherwise
	var st store.Store
	if cfg.Database.Host != "" {
		gs, err := store.Open(cfg.Database.DSN())
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		st = gs
	} else {
		slog.Warn("no database configured, using in-memory store")
		st = store.NewMemory()
	}

	// Object storage for source documents and executed artifacts
	storage, err := service.NewMinioStorage(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize MINIO storage", "error", err)
		os.Exit(1)
	}
	if err := storage.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure MINIO bucket", "error", err)
		os.Exit(1)
	}

	tokens, err := service.NewTokenService(&cfg.Signing)
	if err != nil {
		slog.Error("failed to initialize token service", "error", err)
		os.Exit(1)
	}

	events, err := service.NewEvents(&cfg.Events)
	if err != nil {
		slog.Error("failed to initialize event emitter", "error", err)
		os.Exit(1)
	}

	mailer := service.NewSMTPMailer(&cfg.SMTP)
	notifier := service.NewNotifier(mailer, tokens, cfg.Server.BaseURL)
	// Downstream business actions (proposal acceptance etc.) are wired by
	// the embedding platform; nil means dispatch logs and skips.
	dispatcher := service.NewDispatcher(st, nil)

	signing := service.NewSigningService(
		st, tokens, storage, service.NewPDFRenderer(),
		notifier, dispatcher, events, cfg.Server.BaseURL,
	)

	signingHandler := handler.NewSigningHandler(signing)
	fileHandler := handler.NewFileHandler(tokens, storage, st)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimit(100, time.Minute))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.GET("/signing/:token", signingHandler.Session)
		api.POST("/signing/:token/submit", signingHandler.Submit)
		api.GET("/files/:token", fileHandler.Download)
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
