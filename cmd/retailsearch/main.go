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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/retailsearch/internal/api"
	"github.com/maltedev/retailsearch/internal/cache"
	"github.com/maltedev/retailsearch/internal/config"
	"github.com/maltedev/retailsearch/internal/database"
	"github.com/maltedev/retailsearch/internal/fetcher"
	"github.com/maltedev/retailsearch/internal/netpolicy"
	"github.com/maltedev/retailsearch/internal/search"
)

func main() {
	// Setup logging
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache store: in-memory by default, Postgres when configured, with an
	// optional Redis hot tier layered on top.
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		store = cache.NewPostgresStore(db)
	}

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		hot := cache.NewRedisStore(redisClient, cfg.Search.CacheTTL)
		store = cache.NewTieredStore(hot, store, logger)
	}

	// Start cache sweeper
	sweeper := cache.NewSweeper(store, logger, cache.SweeperConfig{
		Interval: cfg.Search.SweepInterval,
		MaxAge:   cfg.Search.CacheTTL,
	})
	go func() {
		if err := sweeper.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("cache sweeper stopped with error", "error", err)
		}
	}()

	// Initialize services
	pageFetcher := fetcher.New(fetcher.Config{
		Proxy: fetcher.ProxyConfig{
			Host:     cfg.Proxy.Host,
			Port:     cfg.Proxy.Port,
			Username: cfg.Proxy.Username,
			Password: cfg.Proxy.Password,
		},
		NetworkRules: netpolicy.Rules{
			Enabled:       cfg.Network.DetectionEnabled,
			CIDRs:         cfg.Network.CIDRs,
			HostnameGlobs: cfg.Network.HostnameGlobs,
		},
		ServerIP:          cfg.Network.ServerIP,
		ServerHostname:    cfg.Network.ServerHostname,
		BandwidthOptimize: cfg.Search.BandwidthOptimize,
		Timeout:           cfg.Search.FetchTimeout,
	}, logger)

	searchService := search.NewService(pageFetcher, store, search.Config{
		AffiliateTags: cfg.AffiliateTags(),
		CacheTTL:      cfg.Search.CacheTTL,
	}, logger)

	// Initialize API handlers
	handlers := api.NewHandlers(searchService, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", handlers.Health)

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Post("/", handlers.Search)
			r.Post("/filter", handlers.Filter)
			r.Post("/load-more", handlers.LoadMore)
		})
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
