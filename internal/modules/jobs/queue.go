package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types
const (
	TypeClipExtract  = "clip:extract"
	TypeCleanupFiles = "files:cleanup"
)

// QueueClient handles job queue operations
type QueueClient struct {
	client    *asynq.Client
	redisAddr string
	logger    *zap.Logger
}

// NewQueueClient creates a new queue client
func NewQueueClient(redisAddr string, logger *zap.Logger) *QueueClient {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &QueueClient{
		client:    client,
		redisAddr: redisAddr,
		logger:    logger,
	}
}

// Close closes the queue client
func (q *QueueClient) Close() error {
	return q.client.Close()
}

// ClipExtractPayload contains clip extraction task data
type ClipExtractPayload struct {
	JobID             string  `json:"jobId"`
	SourcePath        string  `json:"sourcePath"`
	OutputPath        string  `json:"outputPath"`
	StartSeconds      float64 `json:"startSeconds"`
	EndSeconds        float64 `json:"endSeconds"`
	ForceKeyframeSnap bool    `json:"forceKeyframeSnap"`
	AllowSmartCut     bool    `json:"allowSmartCut"`
}

// CleanupPayload contains file cleanup task data
type CleanupPayload struct {
	Zone string `json:"zone"`
}

// EnqueueClipExtract queues a clip extraction task
func (q *QueueClient) EnqueueClipExtract(payload ClipExtractPayload, priority string) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(TypeClipExtract, data)

	opts := []asynq.Option{
		asynq.MaxRetry(2),
		asynq.Timeout(30 * time.Minute),
	}

	switch priority {
	case "high":
		opts = append(opts, asynq.Queue("critical"))
	case "low":
		opts = append(opts, asynq.Queue("low"))
	default:
		opts = append(opts, asynq.Queue("default"))
	}

	info, err := q.client.Enqueue(task, opts...)
	if err != nil {
		q.logger.Error("Failed to enqueue clip extract task", zap.Error(err))
		return nil, err
	}

	q.logger.Info("Clip extract task enqueued",
		zap.String("task_id", info.ID),
		zap.String("job_id", payload.JobID),
	)

	return info, nil
}

// EnqueueCleanup queues a file cleanup task
func (q *QueueClient) EnqueueCleanup(payload CleanupPayload) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(TypeCleanupFiles, data)

	opts := []asynq.Option{
		asynq.MaxRetry(1),
		asynq.Queue("low"),
	}

	return q.client.Enqueue(task, opts...)
}

// ScheduleCleanup registers the periodic zone cleanup tasks and starts the
// scheduler. Retention is decided per zone by the storage service.
func (q *QueueClient) ScheduleCleanup() error {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: q.redisAddr},
		nil,
	)

	uploadPayload, _ := json.Marshal(CleanupPayload{Zone: "upload"})
	scheduler.Register("@hourly", asynq.NewTask(TypeCleanupFiles, uploadPayload))

	workingPayload, _ := json.Marshal(CleanupPayload{Zone: "working"})
	scheduler.Register("@every 30m", asynq.NewTask(TypeCleanupFiles, workingPayload))

	outputPayload, _ := json.Marshal(CleanupPayload{Zone: "output"})
	scheduler.Register("@daily", asynq.NewTask(TypeCleanupFiles, outputPayload))

	return scheduler.Start()
}
