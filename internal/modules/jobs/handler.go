package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/cutstudio/backend/internal/extract"
	"github.com/cutstudio/backend/internal/shared/metrics"
	"github.com/cutstudio/backend/internal/shared/storage"
)

// HandlerConfig contains dependencies for the worker-side task handler
type HandlerConfig struct {
	Jobs    *Module
	Engine  *extract.Engine
	Storage *storage.Service
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Handler executes queued tasks on the worker
type Handler struct {
	jobs    *Module
	engine  *extract.Engine
	storage *storage.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new job handler
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		jobs:    cfg.Jobs,
		engine:  cfg.Engine,
		storage: cfg.Storage,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// HandleClipExtract runs the extraction engine for one clip job
func (h *Handler) HandleClipExtract(ctx context.Context, task *asynq.Task) error {
	var payload ClipExtractPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	// A cancelled job may still have a queued task.
	job, err := h.jobs.GetJob(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("job lookup failed: %w", err)
	}
	if job.Status == StatusCancelled {
		h.logger.Info("Skipping cancelled job", zap.String("job_id", payload.JobID))
		return nil
	}

	if err := h.jobs.MarkProcessing(ctx, payload.JobID); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if h.metrics != nil {
		h.metrics.RecordJobStarted()
	}

	h.logger.Info("Extracting clip",
		zap.String("job_id", payload.JobID),
		zap.String("source", payload.SourcePath),
		zap.Float64("start", payload.StartSeconds),
		zap.Float64("end", payload.EndSeconds),
	)

	started := time.Now()
	outcome, err := h.engine.Extract(ctx, extract.CutRequest{
		Source:            payload.SourcePath,
		Start:             payload.StartSeconds,
		End:               payload.EndSeconds,
		Output:            payload.OutputPath,
		ForceKeyframeSnap: payload.ForceKeyframeSnap,
		AllowSmartCut:     payload.AllowSmartCut,
	})
	if h.metrics != nil {
		for _, tier := range outcome.FailedTiers {
			h.metrics.RecordTierFailure(string(tier))
		}
		h.metrics.RecordExtraction(string(outcome.Method), outcome.Success, time.Since(started))
	}

	if err != nil {
		h.jobs.FailJob(ctx, payload.JobID, err, nil)
		return fmt.Errorf("invalid extraction request: %w", err)
	}
	if !outcome.Success {
		extractErr := fmt.Errorf("all extraction tiers failed")
		if failErr := h.jobs.FailJob(ctx, payload.JobID, extractErr, &outcome); failErr != nil {
			h.logger.Error("Failed to persist job failure", zap.Error(failErr))
		}
		// Deterministic failure, retrying will not help.
		return nil
	}

	if err := h.jobs.CompleteJob(ctx, payload.JobID, outcome); err != nil {
		return fmt.Errorf("failed to persist job completion: %w", err)
	}

	h.logger.Info("Clip extraction completed",
		zap.String("job_id", payload.JobID),
		zap.String("method", string(outcome.Method)),
		zap.Bool("quality_preserved", outcome.QualityPreserved),
		zap.Int64("output_bytes", outcome.OutputFileSizeBytes),
	)
	return nil
}

// HandleCleanupFiles removes expired files from a storage zone
func (h *Handler) HandleCleanupFiles(ctx context.Context, task *asynq.Task) error {
	var payload CleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	removed, err := h.storage.CleanupZone(ctx, storage.Zone(payload.Zone))
	if err != nil {
		h.logger.Error("Zone cleanup failed", zap.String("zone", payload.Zone), zap.Error(err))
		return err
	}

	h.logger.Info("Zone cleanup finished",
		zap.String("zone", payload.Zone),
		zap.Int("files_removed", removed),
	)
	return nil
}
