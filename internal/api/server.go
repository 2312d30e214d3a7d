package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cutstudio/backend/internal/api/handlers"
	"github.com/cutstudio/backend/internal/api/middleware"
	"github.com/cutstudio/backend/internal/api/websocket"
	"github.com/cutstudio/backend/internal/extract"
	"github.com/cutstudio/backend/internal/modules/jobs"
	"github.com/cutstudio/backend/internal/shared/config"
	"github.com/cutstudio/backend/internal/shared/database"
	"github.com/cutstudio/backend/internal/shared/metrics"
	"github.com/cutstudio/backend/internal/shared/storage"
)

// ServerConfig holds dependencies for the API server
type ServerConfig struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *database.Postgres
	Redis      *database.Redis
	Storage    *storage.Service
	WSHub      *websocket.Hub
	Engine     *extract.Engine
	JobsModule *jobs.Module
	Metrics    *metrics.Metrics
}

// Server represents the API server
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	db         *database.Postgres
	redis      *database.Redis
	storage    *storage.Service
	wsHub      *websocket.Hub
	engine     *extract.Engine
	jobsModule *jobs.Module
	metrics    *metrics.Metrics
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		config:     cfg.Config,
		logger:     cfg.Logger,
		db:         cfg.DB,
		redis:      cfg.Redis,
		storage:    cfg.Storage,
		wsHub:      cfg.WSHub,
		engine:     cfg.Engine,
		jobsModule: cfg.JobsModule,
		metrics:    cfg.Metrics,
	}
}

// Router returns the configured HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.SecurityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "Range"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Content-Length", "Content-Range", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.metrics != nil {
		r.Use(middleware.MetricsMiddleware(s.metrics))
	}

	rateLimiter := middleware.NewRateLimiter(s.redis.Client, s.logger)
	r.Use(rateLimiter.Limit(middleware.GlobalRateLimit))

	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.db, s.redis)
	fileHandler := handlers.NewFileHandler(s.storage, s.db, s.config.MaxUploadSize, s.logger)
	clipHandler := handlers.NewClipHandler(s.jobsModule, s.metrics, s.logger)
	analysisHandler := handlers.NewAnalysisHandler(s.engine, s.db, s.logger)
	wsHandler := handlers.NewWebSocketHandler(s.wsHub, s.logger)

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)

		// File management
		r.Route("/files", func(r chi.Router) {
			r.With(rateLimiter.Limit(middleware.FileUploadRateLimit)).
				Post("/upload", fileHandler.Upload)
			r.Get("/", fileHandler.ListFiles)
			r.Get("/{id}", fileHandler.GetFile)
			r.Get("/{id}/download", fileHandler.DownloadFile)
			r.Delete("/{id}", fileHandler.DeleteFile)
		})

		// Clip extraction jobs
		r.Route("/clips", func(r chi.Router) {
			r.With(rateLimiter.Limit(middleware.JobCreationRateLimit)).
				Post("/", clipHandler.CreateClip)
			r.Get("/", clipHandler.ListClips)
			r.Get("/{id}", clipHandler.GetClip)
			r.Get("/{id}/download", clipHandler.DownloadClip)
			r.Post("/{id}/cancel", clipHandler.CancelClip)
		})

		// Synchronous analysis, limited since each call runs ffmpeg
		r.Route("/analysis", func(r chi.Router) {
			r.Use(rateLimiter.Limit(middleware.AnalysisRateLimit), middleware.NoCache)
			r.Post("/compatibility", analysisHandler.CheckCompatibility)
			r.Post("/quality", analysisHandler.AnalyzeQuality)
		})

		// WebSocket progress feed
		r.Get("/ws", wsHandler.HandleConnection)
	})

	return r
}
