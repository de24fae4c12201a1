package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ether-stories/internal/config"
	"ether-stories/internal/engine"
	"ether-stories/internal/generators"
	"ether-stories/internal/interfaces"
	"ether-stories/internal/logging"
	"ether-stories/internal/prompts"
	"ether-stories/internal/storage"
	"ether-stories/internal/web"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// Secrets come from the environment; .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging)

	// Run store: JSON documents on disk by default, MySQL when configured.
	var store interfaces.RunStore
	switch cfg.Database.Driver {
	case "mysql":
		mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
		if err != nil {
			logger.Error("failed to connect to MySQL", "err", err)
			os.Exit(1)
		}
		defer mysqlStore.Close()
		store = mysqlStore
		logger.Info("MySQL run store connected")
	default:
		fileStore, err := storage.NewFileStore(cfg.Database.File.Dir)
		if err != nil {
			logger.Error("failed to create file run store", "err", err)
			os.Exit(1)
		}
		store = fileStore
		logger.Info("file run store ready", "dir", cfg.Database.File.Dir)
	}

	// Progress cache is optional; the service degrades to durable-store
	// reads without it.
	var redisStore *storage.RedisStore
	if cfg.Database.Redis.Enabled {
		redisStore, err = storage.NewRedisStore(cfg.Database.Redis)
		if err != nil {
			logger.Warn("failed to connect to Redis, progress cache disabled", "err", err)
			redisStore = nil
		} else {
			defer redisStore.Close()
			logger.Info("Redis progress cache connected")
		}
	}

	templates := prompts.NewTemplateEngine()
	metrics := engine.NewMetrics()

	writer := engine.NewWriterClient(cfg.AI.Writer)
	moderator := engine.NewModeratorClient(cfg.AI.Moderator, templates)
	gate := engine.NewSafetyGate(moderator, cfg.Story.PriorChapterWindow, cfg.AI.Moderator.FailOpen, metrics, logger)
	if cfg.AI.Moderator.FailOpen {
		logger.Warn("safety gate configured FAIL-OPEN: judge errors will accept drafts")
	}

	imageCache := generators.NewIllustrationCache(cfg.AI.Painter.OutputDir)
	if err := imageCache.Initialize(); err != nil {
		logger.Warn("failed to initialize illustration cache", "err", err)
	}
	painter := generators.NewPainterClient(cfg.AI.Painter, imageCache, logger)

	orchestrator := engine.NewChapterOrchestrator(writer, gate, painter, templates, engine.OrchestratorConfig{
		MaxRetry:     cfg.Story.MaxRetry,
		RetryBackoff: cfg.Story.RetryBackoff.Duration(),
		MaxTokens:    cfg.AI.Writer.MaxTokens,
	}, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := web.NewProgressHub(logger)
	go hub.Run(ctx)

	sinks := []interfaces.ProgressSink{hub}
	if redisStore != nil {
		sinks = append(sinks, redisStore)
	}
	coordinator := engine.NewRunCoordinator(orchestrator, store, logger, sinks...)

	handlers := web.NewHandlers(coordinator, store, redisStore, metrics, logger)
	router := web.NewRouter(handlers, hub)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
	logger.Info("server stopped")
}
