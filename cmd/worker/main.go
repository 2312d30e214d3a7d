package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

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

	logger.Info("Starting Cut Studio Worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Environment),
	)

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	storageService, err := storage.NewService(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	// Progress broadcasts go out through the API server's hub; the worker's
	// own hub has no clients but keeps the module wiring uniform.
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

	jobHandler := jobs.NewHandler(jobs.HandlerConfig{
		Jobs:    jobsModule,
		Engine:  engine,
		Storage: storageService,
		Metrics: m,
		Logger:  logger,
	})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisURL},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TypeClipExtract, jobHandler.HandleClipExtract)
	mux.HandleFunc(jobs.TypeCleanupFiles, jobHandler.HandleCleanupFiles)

	go func() {
		logger.Info("Worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
		if err := srv.Run(mux); err != nil {
			logger.Fatal("Worker failed", zap.Error(err))
		}
	}()

	go func() {
		if err := jobQueue.ScheduleCleanup(); err != nil {
			logger.Error("Cleanup scheduler failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	srv.Shutdown()
	logger.Info("Worker stopped")
}
