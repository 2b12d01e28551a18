package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/props-engine/internal/api/handlers"
	"github.com/stitts-dev/props-engine/internal/cache"
	"github.com/stitts-dev/props-engine/internal/config"
	"github.com/stitts-dev/props-engine/internal/runner"
	"github.com/stitts-dev/props-engine/pkg/logger"
)

func main() {
	serve := flag.Bool("serve", false, "run the HTTP API after the initial batch run")
	skipInitial := flag.Bool("skip-initial-run", false, "in serve mode, do not run a batch before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger with service context
	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithService("props-engine")
	log.WithFields(logrus.Fields{
		"version":     "1.0.0",
		"environment": cfg.Env,
		"data_dir":    cfg.DataDir,
		"output_dir":  cfg.OutputDir,
	}).Info("Starting props engine")

	// Connect to Redis when configured; the cache is optional and a nil
	// cache disables it without branching at call sites.
	runCache, err := cache.New(cfg.RedisURL, cfg.CacheTTL, log)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer runCache.Close()

	r := runner.New(cfg, runCache, log)

	if !*serve {
		if _, err := r.Run(context.Background()); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		return
	}

	if !*skipInitial {
		if _, err := r.Run(context.Background()); err != nil {
			// Serve anyway; the run endpoint can retry once inputs are fixed.
			log.WithError(err).Error("Initial run failed")
		}
	}

	// Setup Gin mode
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(runCache, r, structuredLogger)
	runHandler := handlers.NewRunHandler(r, structuredLogger)

	// Setup API routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/summary", runHandler.GetSummary)
		apiV1.GET("/roles", runHandler.GetRoles)
		apiV1.GET("/projections", runHandler.GetProjections)
		apiV1.GET("/suggestions", runHandler.GetSuggestions)
		apiV1.POST("/run", runHandler.TriggerRun)
	}

	// Health check endpoints (support both GET and HEAD)
	router.GET("/health", healthHandler.GetHealth)
	router.HEAD("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	router.HEAD("/ready", healthHandler.GetReady)

	// Optional recurring runs
	scheduler := cron.New()
	if err := r.Schedule(scheduler); err != nil {
		log.Fatalf("Failed to schedule runs: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("Props engine API started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down props engine...")

	// The server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Props engine forced to shutdown: %v", err)
	}

	log.Info("Props engine exited")
}
