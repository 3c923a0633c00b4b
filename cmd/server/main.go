// Package main is the entry point for the Dangwar community API server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k4631938-beep/Dangwar/internal/cache"
	"github.com/k4631938-beep/Dangwar/internal/config"
	"github.com/k4631938-beep/Dangwar/internal/feed"
	"github.com/k4631938-beep/Dangwar/internal/handler"
	"github.com/k4631938-beep/Dangwar/internal/middleware"
	"github.com/k4631938-beep/Dangwar/internal/pkg/response"
	"github.com/k4631938-beep/Dangwar/internal/platform"
	"github.com/k4631938-beep/Dangwar/internal/reconcile"
	"github.com/k4631938-beep/Dangwar/internal/session"
	"github.com/k4631938-beep/Dangwar/internal/social"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting Dangwar API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	// Connect to Redis
	redis, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Platform clients. Identity, records, and files may live behind
	// different endpoints of the same platform project.
	identity := platform.NewIdentityClient(platform.NewClient(
		cfg.Platform.IdentityURL, cfg.Platform.APIKey,
		platform.WithProjectID(cfg.Platform.ProjectID),
		platform.WithTimeout(cfg.Platform.Timeout),
	))
	records := platform.NewRecordClient(platform.NewClient(
		cfg.Platform.RecordsURL, cfg.Platform.APIKey,
		platform.WithProjectID(cfg.Platform.ProjectID),
		platform.WithTimeout(cfg.Platform.Timeout),
	))
	files := platform.NewFileClient(platform.NewClient(
		cfg.Platform.FilesURL, cfg.Platform.APIKey,
		platform.WithProjectID(cfg.Platform.ProjectID),
		platform.WithTimeout(cfg.Platform.Timeout),
	))

	// Managers
	queue := reconcile.NewRedisQueue(redis)
	sessionManager := session.NewManager(identity, records, logger)
	feedManager := feed.NewManager(records, files, sessionManager, queue, logger, cfg.Feed)
	socialManager := social.NewManager(records, queue, logger, cfg.Feed)

	// Background corrective pass over stale paired writes
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reconciler := reconcile.NewReconciler(queue, records, logger,
		cfg.Feed.ReconcileEvery, cfg.Feed.ReconcileMaxAge)
	go reconciler.Start(ctx)

	// Session cookies and handlers
	sessions := middleware.NewSessions(cfg.Session)
	authHandler := handler.NewAuthHandler(sessions, sessionManager)
	feedHandler := handler.NewFeedHandler(sessions, feedManager)
	socialHandler := handler.NewSocialHandler(sessions, socialManager, redis, cfg.Feed.SearchRatePerMin)

	// Setup router
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, "Route")
	})

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(redis))
	r.Handle("/metrics", promhttp.Handler())

	// Static single page app
	fileServer := http.FileServer(http.Dir("static"))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, "static/index.html")
	})

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(sessions.WithSession)

		r.Mount("/auth", authHandler.Routes())
		r.Mount("/", feedHandler.Routes())
		r.Mount("/users", socialHandler.Routes())
	})

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server", slog.String("signal", sig.String()))
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}

// healthHandler returns a simple health check that always succeeds if the server is running.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// readyHandler returns a readiness check that verifies the Redis connection.
func readyHandler(redis *cache.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := redis.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"redis"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
