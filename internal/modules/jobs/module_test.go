package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cutstudio/backend/internal/extract"
	"github.com/cutstudio/backend/internal/shared/config"
	"github.com/cutstudio/backend/internal/shared/storage"
)

func newTestModule(t *testing.T) (*Module, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := storage.NewService(config.StorageConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	return NewModule(mock, store, nil, nil, zap.NewNop()), mock
}

var jobColumns = []string{
	"id", "file_id", "source_path", "output_path", "start_seconds", "end_seconds",
	"force_keyframe_snap", "allow_smart_cut", "status", "outcome", "error",
	"created_at", "started_at", "completed_at",
}

func jobRow(mock pgxmock.PgxPoolIface, id, status string, outcome []byte) *pgxmock.Rows {
	return mock.NewRows(jobColumns).AddRow(
		id, "file-1", strPtr("/data/upload/file-1.mp4"), strPtr("/data/output/"+id+".mp4"),
		2.0, 6.0, false, true, status, outcome, (*string)(nil),
		time.Now(), (*time.Time)(nil), (*time.Time)(nil),
	)
}

func strPtr(s string) *string { return &s }

func TestCreateJobRejectsBadBounds(t *testing.T) {
	tests := []struct {
		name   string
		params CreateJobParams
	}{
		{"end before start", CreateJobParams{FileID: "file-1", StartSeconds: 5, EndSeconds: 2}},
		{"zero-length clip", CreateJobParams{FileID: "file-1", StartSeconds: 2, EndSeconds: 2}},
		{"negative start", CreateJobParams{FileID: "file-1", StartSeconds: -1, EndSeconds: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module, mock := newTestModule(t)

			mock.ExpectQuery(`SELECT storage_path, original_name FROM files`).
				WithArgs("file-1").
				WillReturnRows(mock.NewRows([]string{"storage_path", "original_name"}).
					AddRow("/data/upload/file-1.mp4", "holiday.mp4"))

			_, err := module.CreateJob(context.Background(), tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid cut bounds")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateJobUnknownFile(t *testing.T) {
	module, mock := newTestModule(t)

	mock.ExpectQuery(`SELECT storage_path, original_name FROM files`).
		WithArgs("missing").
		WillReturnError(assert.AnError)

	_, err := module.CreateJob(context.Background(), CreateJobParams{
		FileID: "missing", StartSeconds: 0, EndSeconds: 5,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input file not found")
}

func TestGetJob(t *testing.T) {
	module, mock := newTestModule(t)

	outcome, _ := json.Marshal(extract.Outcome{
		Success: true, Method: extract.MethodStreamCopy, QualityPreserved: true,
	})
	mock.ExpectQuery(`(?s)SELECT (.+) FROM clip_jobs WHERE id`).
		WithArgs("job-1").
		WillReturnRows(jobRow(mock, "job-1", StatusCompleted, outcome))

	job, err := module.GetJob(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, StatusCompleted, job.Status)
	require.NotNil(t, job.Outcome)
	assert.Equal(t, extract.MethodStreamCopy, job.Outcome.Method)
	assert.True(t, job.Outcome.QualityPreserved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobs(t *testing.T) {
	module, mock := newTestModule(t)

	rows := jobRow(mock, "job-1", StatusQueued, nil).AddRow(
		"job-2", "file-2", strPtr("/data/upload/file-2.mp4"), strPtr("/data/output/job-2.mp4"),
		0.0, 3.5, true, false, StatusProcessing, []byte(nil), (*string)(nil),
		time.Now(), (*time.Time)(nil), (*time.Time)(nil),
	)
	mock.ExpectQuery(`(?s)SELECT (.+) FROM clip_jobs`).
		WithArgs("").
		WillReturnRows(rows)

	jobs, err := module.ListJobs(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Nil(t, jobs[0].Outcome)
	assert.Equal(t, StatusProcessing, jobs[1].Status)
}

func TestCancelJob(t *testing.T) {
	t.Run("cancels a queued job", func(t *testing.T) {
		module, mock := newTestModule(t)

		mock.ExpectQuery(`(?s)SELECT (.+) FROM clip_jobs WHERE id`).
			WithArgs("job-1").
			WillReturnRows(jobRow(mock, "job-1", StatusQueued, nil))
		mock.ExpectExec(`UPDATE clip_jobs SET status = \$1, completed_at = \$2`).
			WithArgs(StatusCancelled, pgxmock.AnyArg(), "job-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, module.CancelJob(context.Background(), "job-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses to cancel a completed job", func(t *testing.T) {
		module, mock := newTestModule(t)

		mock.ExpectQuery(`(?s)SELECT (.+) FROM clip_jobs WHERE id`).
			WithArgs("job-1").
			WillReturnRows(jobRow(mock, "job-1", StatusCompleted, nil))

		err := module.CancelJob(context.Background(), "job-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be cancelled")
	})
}

func TestMarkProcessing(t *testing.T) {
	module, mock := newTestModule(t)

	mock.ExpectExec(`UPDATE clip_jobs SET status = \$1, started_at`).
		WithArgs(StatusProcessing, "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, module.MarkProcessing(context.Background(), "job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteJob(t *testing.T) {
	module, mock := newTestModule(t)

	outcome := extract.Outcome{
		Success:             true,
		Method:              extract.MethodSmartCut,
		QualityPreserved:    true,
		OutputFileSizeBytes: 1024,
	}
	outcomeJSON, _ := json.Marshal(outcome)

	mock.ExpectExec(`UPDATE clip_jobs SET status = \$1, outcome = \$2, completed_at = \$3`).
		WithArgs(StatusCompleted, outcomeJSON, pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, module.CompleteJob(context.Background(), "job-1", outcome))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailJob(t *testing.T) {
	module, mock := newTestModule(t)

	mock.ExpectExec(`UPDATE clip_jobs SET status = \$1, outcome = \$2, error = \$3`).
		WithArgs(StatusFailed, []byte(nil), "all extraction tiers failed", pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, module.FailJob(context.Background(), "job-1",
		errors.New("all extraction tiers failed"), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutputFileName(t *testing.T) {
	job := &Job{
		SourcePath:   "/data/upload/holiday.mp4",
		OutputPath:   "/data/output/job-1.mp4",
		StartSeconds: 2.0,
		EndSeconds:   6.5,
	}
	assert.Equal(t, "holiday_2.0-6.5.mp4", job.OutputFileName())
}
