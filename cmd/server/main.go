package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cutstudio/backend/internal/api"
	"github.com/cutstudio/backend/internal/api/websocket"
	"github.com/cutstudio/backend/internal/extract"
	"github.com/cutstudio/backend/internal/modules/jobs"
	"github.com/cutstudio/backend/internal/shared/config"
	"github.com/cutstudio/backend/internal/shared/database"
	"github.com/cutstudio/backend/internal/shared/logging"
	"github.com/cutstudio/backend/internal/shared/metrics"
	"github.com/cutstudio/backend/internal/shared/storage"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Cut Studio API Server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Environment),
	)

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	storageService, err := storage.NewService(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	m := metrics.New()

	engine := extract.New(extract.Config{
		FFmpegPath:          cfg.FFmpegPath,
		FFprobePath:         cfg.FFprobePath,
		KeyframeScanTimeout: time.Duration(cfg.KeyframeScanTimeout) * time.Second,
		FrameScanTimeout:    time.Duration(cfg.FrameScanTimeout) * time.Second,
		StreamCopyTimeout:   time.Duration(cfg.StreamCopyTimeout) * time.Second,
		SmartCutTimeout:     time.Duration(cfg.SmartCutTimeout) * time.Second,
		ReEncodeTimeout:     time.Duration(cfg.ReEncodeTimeout) * time.Second,
		Tolerance:           cfg.AlignmentTolerance,
		WorkDir:             storageService.WorkDir,
	}, logger)

	jobQueue := jobs.NewQueueClient(cfg.RedisURL, logger)
	defer jobQueue.Close()

	jobsModule := jobs.NewModule(db.Pool, storageService, jobQueue, wsHub, logger)

	server := api.NewServer(api.ServerConfig{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Redis:      redisClient,
		Storage:    storageService,
		WSHub:      wsHub,
		Engine:     engine,
		JobsModule: jobsModule,
		Metrics:    m,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
