package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cutstudio/backend/internal/modules/jobs"
	"github.com/cutstudio/backend/internal/shared/metrics"
)

// ClipHandler handles clip extraction jobs
type ClipHandler struct {
	jobs    *jobs.Module
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClipHandler creates a new clip handler
func NewClipHandler(jobsModule *jobs.Module, m *metrics.Metrics, logger *zap.Logger) *ClipHandler {
	return &ClipHandler{
		jobs:    jobsModule,
		metrics: m,
		logger:  logger,
	}
}

// CreateClip creates and enqueues a clip extraction job
func (h *ClipHandler) CreateClip(w http.ResponseWriter, r *http.Request) {
	var params jobs.CreateJobParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if params.FileID == "" {
		http.Error(w, "fileId is required", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), params)
	if err != nil {
		if strings.Contains(err.Error(), "invalid cut bounds") {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to create clip job", zap.Error(err))
		http.Error(w, "failed to create job", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordJobCreated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// GetClip returns a single job with its outcome
func (h *ClipHandler) GetClip(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// ListClips returns recent jobs, optionally filtered by ?status=
func (h *ClipHandler) ListClips(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobs.ListJobs(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("Failed to list clip jobs", zap.Error(err))
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// CancelClip cancels a queued or processing job
func (h *ClipHandler) CancelClip(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if err := h.jobs.CancelJob(r.Context(), jobID); err != nil {
		if strings.Contains(err.Error(), "cannot be cancelled") {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	h.logger.Info("Clip job cancelled", zap.String("job_id", jobID))
	w.WriteHeader(http.StatusNoContent)
}

// DownloadClip streams the extracted clip for a completed job
func (h *ClipHandler) DownloadClip(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if job.Status != jobs.StatusCompleted {
		http.Error(w, "clip is not ready", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+job.OutputFileName()+`"`)
	http.ServeFile(w, r, job.OutputPath)
}
