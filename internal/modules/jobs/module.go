package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/cutstudio/backend/internal/api/websocket"
	"github.com/cutstudio/backend/internal/extract"
	"github.com/cutstudio/backend/internal/shared/storage"
)

// Job statuses
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Job represents one clip-extraction job
type Job struct {
	ID                string           `json:"id"`
	FileID            string           `json:"fileId"`
	SourcePath        string           `json:"sourcePath,omitempty"`
	OutputPath        string           `json:"outputPath,omitempty"`
	StartSeconds      float64          `json:"startSeconds"`
	EndSeconds        float64          `json:"endSeconds"`
	ForceKeyframeSnap bool             `json:"forceKeyframeSnap"`
	AllowSmartCut     bool             `json:"allowSmartCut"`
	Status            string           `json:"status"`
	Outcome           *extract.Outcome `json:"outcome,omitempty"`
	Error             string           `json:"error,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	StartedAt         *time.Time       `json:"startedAt,omitempty"`
	CompletedAt       *time.Time       `json:"completedAt,omitempty"`
}

// CreateJobParams contains parameters for creating a clip job
type CreateJobParams struct {
	FileID            string  `json:"fileId"`
	StartSeconds      float64 `json:"startSeconds"`
	EndSeconds        float64 `json:"endSeconds"`
	ForceKeyframeSnap bool    `json:"forceKeyframeSnap"`
	AllowSmartCut     bool    `json:"allowSmartCut"`
	Priority          string  `json:"priority"`
}

// DB is the subset of pgxpool.Pool the module uses. Narrowed to an
// interface so tests can substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Module handles clip job management
type Module struct {
	db      DB
	storage *storage.Service
	queue   *QueueClient
	wsHub   *websocket.Hub
	logger  *zap.Logger
}

// NewModule creates a new jobs module
func NewModule(db DB, storage *storage.Service, queue *QueueClient, wsHub *websocket.Hub, logger *zap.Logger) *Module {
	return &Module{
		db:      db,
		storage: storage,
		queue:   queue,
		wsHub:   wsHub,
		logger:  logger,
	}
}

// CreateJob validates the cut bounds, persists the job and enqueues it.
func (m *Module) CreateJob(ctx context.Context, params CreateJobParams) (*Job, error) {
	var sourcePath, originalName string
	err := m.db.QueryRow(ctx, `
		SELECT storage_path, original_name FROM files WHERE id = $1
	`, params.FileID).Scan(&sourcePath, &originalName)
	if err != nil {
		return nil, fmt.Errorf("input file not found: %w", err)
	}

	jobID := uuid.New().String()
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".mp4"
	}
	outputPath := m.storage.GetPath(storage.ZoneOutput, jobID+ext)

	req := extract.CutRequest{
		Source:            sourcePath,
		Start:             params.StartSeconds,
		End:               params.EndSeconds,
		Output:            outputPath,
		ForceKeyframeSnap: params.ForceKeyframeSnap,
		AllowSmartCut:     params.AllowSmartCut,
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cut bounds: %w", err)
	}

	now := time.Now()
	job := &Job{
		ID:                jobID,
		FileID:            params.FileID,
		SourcePath:        sourcePath,
		OutputPath:        outputPath,
		StartSeconds:      params.StartSeconds,
		EndSeconds:        params.EndSeconds,
		ForceKeyframeSnap: params.ForceKeyframeSnap,
		AllowSmartCut:     params.AllowSmartCut,
		Status:            StatusQueued,
		CreatedAt:         now,
	}

	_, err = m.db.Exec(ctx, `
		INSERT INTO clip_jobs (id, file_id, source_path, output_path, start_seconds, end_seconds, force_keyframe_snap, allow_smart_cut, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, jobID, params.FileID, sourcePath, outputPath, params.StartSeconds, params.EndSeconds,
		params.ForceKeyframeSnap, params.AllowSmartCut, StatusQueued, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	payload := ClipExtractPayload{
		JobID:             jobID,
		SourcePath:        sourcePath,
		OutputPath:        outputPath,
		StartSeconds:      params.StartSeconds,
		EndSeconds:        params.EndSeconds,
		ForceKeyframeSnap: params.ForceKeyframeSnap,
		AllowSmartCut:     params.AllowSmartCut,
	}
	if _, err := m.queue.EnqueueClipExtract(payload, params.Priority); err != nil {
		m.db.Exec(ctx, "UPDATE clip_jobs SET status = $1 WHERE id = $2", StatusFailed, jobID)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	m.logger.Info("Clip job created and queued",
		zap.String("job_id", jobID),
		zap.String("file_id", params.FileID),
		zap.Float64("start", params.StartSeconds),
		zap.Float64("end", params.EndSeconds),
	)

	return job, nil
}

// GetJob retrieves a job by ID
func (m *Module) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := m.db.QueryRow(ctx, `
		SELECT id, file_id, source_path, output_path, start_seconds, end_seconds,
		       force_keyframe_snap, allow_smart_cut, status, outcome, error,
		       created_at, started_at, completed_at
		FROM clip_jobs WHERE id = $1
	`, jobID)
	return scanJob(row)
}

// ListJobs returns the most recent jobs, optionally filtered by status
func (m *Module) ListJobs(ctx context.Context, status string) ([]*Job, error) {
	rows, err := m.db.Query(ctx, `
		SELECT id, file_id, source_path, output_path, start_seconds, end_seconds,
		       force_keyframe_snap, allow_smart_cut, status, outcome, error,
		       created_at, started_at, completed_at
		FROM clip_jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT 50
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			m.logger.Error("Failed to scan job row", zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CancelJob cancels a queued or processing job
func (m *Module) CancelJob(ctx context.Context, jobID string) error {
	job, err := m.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status == StatusCompleted || job.Status == StatusCancelled {
		return fmt.Errorf("job cannot be cancelled: status is %s", job.Status)
	}

	now := time.Now()
	if _, err := m.db.Exec(ctx, `
		UPDATE clip_jobs SET status = $1, completed_at = $2 WHERE id = $3
	`, StatusCancelled, now, jobID); err != nil {
		return err
	}

	if m.wsHub != nil {
		m.wsHub.BroadcastJobFailed(jobID, "Job cancelled by user")
	}
	return nil
}

// MarkProcessing transitions a job to processing
func (m *Module) MarkProcessing(ctx context.Context, jobID string) error {
	_, err := m.db.Exec(ctx, `
		UPDATE clip_jobs SET status = $1, started_at = COALESCE(started_at, NOW()) WHERE id = $2
	`, StatusProcessing, jobID)
	if err != nil {
		return err
	}

	if m.wsHub != nil {
		m.wsHub.BroadcastJobProgress(jobID, "extracting")
	}
	return nil
}

// CompleteJob stores the extraction outcome and marks the job completed
func (m *Module) CompleteJob(ctx context.Context, jobID string, outcome extract.Outcome) error {
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	now := time.Now()
	if _, err := m.db.Exec(ctx, `
		UPDATE clip_jobs SET status = $1, outcome = $2, completed_at = $3 WHERE id = $4
	`, StatusCompleted, outcomeJSON, now, jobID); err != nil {
		return err
	}

	if m.wsHub != nil {
		m.wsHub.BroadcastJobCompleted(jobID, string(outcome.Method), outcome.QualityPreserved)
	}
	return nil
}

// FailJob stores the failure (and any partial outcome) and marks the job failed
func (m *Module) FailJob(ctx context.Context, jobID string, jobErr error, outcome *extract.Outcome) error {
	now := time.Now()

	var outcomeJSON []byte
	if outcome != nil {
		outcomeJSON, _ = json.Marshal(outcome)
	}

	if _, err := m.db.Exec(ctx, `
		UPDATE clip_jobs SET status = $1, outcome = $2, error = $3, completed_at = $4 WHERE id = $5
	`, StatusFailed, outcomeJSON, jobErr.Error(), now, jobID); err != nil {
		return err
	}

	if m.wsHub != nil {
		m.wsHub.BroadcastJobFailed(jobID, jobErr.Error())
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var sourcePath, outputPath, errMsg *string
	var outcomeJSON []byte
	var startedAt, completedAt *time.Time

	err := row.Scan(
		&job.ID, &job.FileID, &sourcePath, &outputPath, &job.StartSeconds, &job.EndSeconds,
		&job.ForceKeyframeSnap, &job.AllowSmartCut, &job.Status, &outcomeJSON, &errMsg,
		&job.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if sourcePath != nil {
		job.SourcePath = *sourcePath
	}
	if outputPath != nil {
		job.OutputPath = *outputPath
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	job.StartedAt = startedAt
	job.CompletedAt = completedAt

	if len(outcomeJSON) > 0 {
		var outcome extract.Outcome
		if err := json.Unmarshal(outcomeJSON, &outcome); err == nil {
			job.Outcome = &outcome
		}
	}

	return &job, nil
}

// OutputFileName derives a download name from the source and cut bounds.
func (j *Job) OutputFileName() string {
	base := strings.TrimSuffix(filepath.Base(j.SourcePath), filepath.Ext(j.SourcePath))
	return fmt.Sprintf("%s_%.1f-%.1f%s", base, j.StartSeconds, j.EndSeconds, filepath.Ext(j.OutputPath))
}
