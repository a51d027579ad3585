package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spudstack/tuber/internal/agent"
	"github.com/spudstack/tuber/internal/api"
	"github.com/spudstack/tuber/internal/config"
	"github.com/spudstack/tuber/internal/dispatch"
	"github.com/spudstack/tuber/internal/provider"
	"github.com/spudstack/tuber/internal/socket"
	"github.com/spudstack/tuber/internal/stats"
	"github.com/spudstack/tuber/internal/store"
	"github.com/spudstack/tuber/internal/tool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting tuber query service...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/tuber.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	if lvl, err := zapcore.ParseLevel(cfg.Server.LogLevel); err == nil {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
		if rebuilt, err := zcfg.Build(); err == nil {
			logger = rebuilt
		}
	}

	// Storage: postgres, then redis, then in-memory. A missing database
	// degrades persistence; it never blocks startup.
	storage := openStorage(cfg, logger)
	defer storage.Close()

	// Stats, seeded from whatever the storage already holds.
	agg := stats.NewAggregator()
	if persisted, err := storage.Stats(context.Background()); err != nil {
		logger.Warn("could not seed stats from storage", zap.Error(err))
	} else if persisted.Count > 0 {
		agg.Seed(persisted.Count, persisted.AvgLatencyMs)
		logger.Info("Stats seeded from storage", zap.Int64("count", persisted.Count))
	}

	// Text-generation backends: configured remotes first, the
	// deterministic local generator always last in the chain.
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		if pc.Type != "openai" {
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
			continue
		}
		if pc.APIKey == "" {
			logger.Warn("provider has no API key, skipping", zap.String("id", pc.ID))
			continue
		}
		router.Register(provider.NewOpenAIProvider(provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}, logger))
	}
	router.Register(provider.NewLocalProvider())

	// Tool registry with both built-in providers.
	registry := tool.NewRegistry(logger)
	for _, p := range []tool.Provider{
		tool.NewHistoryProvider(storage, logger),
		tool.NewRuntimeProvider(),
	} {
		if err := registry.Register(p); err != nil {
			logger.Fatal("tool registration failed", zap.Error(err))
		}
	}
	registry.StartAll(context.Background())
	logger.Info("Tool registry ready\n" + registry.Status())

	loop := agent.NewLoop(registry, router, cfg.Agent.MaxIterations, logger)
	dispatcher := dispatch.New(loop, storage, agg,
		time.Duration(cfg.Agent.QueryTimeoutSec)*time.Second, logger)

	// Socket front end. Bind failure is fatal.
	sockSrv := socket.New(fmt.Sprintf(":%d", cfg.Server.SocketPort), dispatcher, logger)
	if err := sockSrv.Start(); err != nil {
		logger.Fatal("socket server failed to start", zap.Error(err))
	}

	// HTTP front end.
	handler := api.NewHandler(dispatcher, registry, cfg.StaticDir, logger)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: handler.Router(),
	}
	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	logger.Info("tuber started",
		zap.Int("socket_port", cfg.Server.SocketPort),
		zap.Int("http_port", cfg.Server.HTTPPort))

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(ctx)
	sockSrv.Stop()
	registry.ShutdownAll(ctx)
}

func openStorage(cfg *config.Config, logger *zap.Logger) store.Storage {
	ctx := context.Background()

	if dsn := cfg.Database.Postgres.DSN; dsn != "" {
		pg, err := store.NewPostgres(ctx, dsn, logger)
		if err == nil {
			return pg
		}
		logger.Warn("PostgreSQL unavailable", zap.Error(err))
	}
	if url := cfg.Database.Redis.URL; url != "" {
		rd, err := store.NewRedis(ctx, url, logger)
		if err == nil {
			return rd
		}
		logger.Warn("Redis unavailable", zap.Error(err))
	}
	logger.Info("Using in-memory storage, history will not survive restarts")
	return store.NewMemory()
}
