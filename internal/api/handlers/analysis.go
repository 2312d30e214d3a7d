package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/cutstudio/backend/internal/extract"
	"github.com/cutstudio/backend/internal/shared/database"
)

// AnalysisHandler exposes compatibility and quality analysis
type AnalysisHandler struct {
	engine *extract.Engine
	db     *database.Postgres
	logger *zap.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(engine *extract.Engine, db *database.Postgres, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		engine: engine,
		db:     db,
		logger: logger,
	}
}

func (h *AnalysisHandler) resolvePath(r *http.Request, fileID string) (string, bool) {
	var storagePath string
	err := h.db.Pool.QueryRow(r.Context(), `
		SELECT storage_path FROM files WHERE id = $1
	`, fileID).Scan(&storagePath)
	return storagePath, err == nil
}

// CompatibilityRequest selects the file to probe
type CompatibilityRequest struct {
	FileID string `json:"fileId"`
}

// CheckCompatibility probes a stored file against the extraction allowlists
func (h *AnalysisHandler) CheckCompatibility(w http.ResponseWriter, r *http.Request) {
	var req CompatibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == "" {
		http.Error(w, "fileId is required", http.StatusBadRequest)
		return
	}

	path, ok := h.resolvePath(r, req.FileID)
	if !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	report, err := h.engine.CheckCompatibility(r.Context(), path)
	if err != nil {
		h.logger.Error("Compatibility check failed", zap.String("file_id", req.FileID), zap.Error(err))
		http.Error(w, "failed to analyze file", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// QualityRequest names the original file and the processed file to compare
type QualityRequest struct {
	OriginalFileID  string `json:"originalFileId"`
	ProcessedFileID string `json:"processedFileId"`
}

// AnalyzeQuality compares a processed file against its original
func (h *AnalysisHandler) AnalyzeQuality(w http.ResponseWriter, r *http.Request) {
	var req QualityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.OriginalFileID == "" || req.ProcessedFileID == "" {
		http.Error(w, "originalFileId and processedFileId are required", http.StatusBadRequest)
		return
	}

	original, ok := h.resolvePath(r, req.OriginalFileID)
	if !ok {
		http.Error(w, "original file not found", http.StatusNotFound)
		return
	}
	processed, ok := h.resolvePath(r, req.ProcessedFileID)
	if !ok {
		http.Error(w, "processed file not found", http.StatusNotFound)
		return
	}

	report, err := h.engine.AnalyzeQuality(r.Context(), original, processed)
	if err != nil {
		h.logger.Error("Quality analysis failed", zap.Error(err))
		http.Error(w, "failed to analyze quality", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
