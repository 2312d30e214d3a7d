package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cutstudio/backend/internal/shared/database"
	"github.com/cutstudio/backend/internal/shared/storage"
)

// FileHandler handles file operations
type FileHandler struct {
	storage       *storage.Service
	db            *database.Postgres
	logger        *zap.Logger
	maxUploadSize int64
}

// NewFileHandler creates a new file handler
func NewFileHandler(storage *storage.Service, db *database.Postgres, maxUploadSize int64, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		storage:       storage,
		db:            db,
		logger:        logger,
		maxUploadSize: maxUploadSize,
	}
}

// FileResponse represents file metadata returned to clients
type FileResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimeType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Upload handles a multipart file upload into the upload zone
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	// 32MB in memory, the rest spills to disk
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "failed to get file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileInfo, err := h.storage.Store(r.Context(), storage.ZoneUpload, header.Filename, file)
	if err != nil {
		h.logger.Error("Failed to store file", zap.Error(err))
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	// Detect MIME type from the leading bytes
	buffer := make([]byte, 512)
	file.Seek(0, io.SeekStart)
	file.Read(buffer)
	mimeType := http.DetectContentType(buffer)

	_, err = h.db.Pool.Exec(r.Context(), `
		INSERT INTO files (id, original_name, storage_path, size_bytes, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, fileInfo.ID, header.Filename, fileInfo.Path, fileInfo.Size, mimeType, fileInfo.CreatedAt)
	if err != nil {
		h.storage.Delete(r.Context(), fileInfo.Path)
		h.logger.Error("Failed to record file", zap.Error(err))
		http.Error(w, "failed to record file", http.StatusInternalServerError)
		return
	}

	h.logger.Info("File uploaded",
		zap.String("file_id", fileInfo.ID),
		zap.String("filename", header.Filename),
		zap.Int64("size", fileInfo.Size),
		zap.String("mime_type", mimeType),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(FileResponse{
		ID:        fileInfo.ID,
		Name:      header.Filename,
		Size:      fileInfo.Size,
		MimeType:  mimeType,
		CreatedAt: fileInfo.CreatedAt,
	})
}

// GetFile returns file metadata
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var resp FileResponse
	var mimeType *string
	err := h.db.Pool.QueryRow(r.Context(), `
		SELECT id, original_name, size_bytes, mime_type, created_at FROM files WHERE id = $1
	`, fileID).Scan(&resp.ID, &resp.Name, &resp.Size, &mimeType, &resp.CreatedAt)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	if mimeType != nil {
		resp.MimeType = *mimeType
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DownloadFile streams the stored file
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var storagePath, originalName string
	err := h.db.Pool.QueryRow(r.Context(), `
		SELECT storage_path, original_name FROM files WHERE id = $1
	`, fileID).Scan(&storagePath, &originalName)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+originalName+`"`)
	http.ServeFile(w, r, storagePath)
}

// DeleteFile removes a file from storage and the database
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var storagePath string
	err := h.db.Pool.QueryRow(r.Context(), `
		SELECT storage_path FROM files WHERE id = $1
	`, fileID).Scan(&storagePath)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	if err := h.storage.Delete(r.Context(), storagePath); err != nil {
		h.logger.Warn("Failed to delete stored file", zap.String("path", storagePath), zap.Error(err))
	}
	if _, err := h.db.Pool.Exec(r.Context(), `DELETE FROM files WHERE id = $1`, fileID); err != nil {
		http.Error(w, "failed to delete file", http.StatusInternalServerError)
		return
	}

	h.logger.Info("File deleted", zap.String("file_id", fileID))
	w.WriteHeader(http.StatusNoContent)
}

// ListFiles returns recently uploaded files
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Pool.Query(r.Context(), `
		SELECT id, original_name, size_bytes, mime_type, created_at
		FROM files ORDER BY created_at DESC LIMIT 100
	`)
	if err != nil {
		http.Error(w, "failed to list files", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	files := []FileResponse{}
	for rows.Next() {
		var f FileResponse
		var mimeType *string
		if err := rows.Scan(&f.ID, &f.Name, &f.Size, &mimeType, &f.CreatedAt); err != nil {
			continue
		}
		if mimeType != nil {
			f.MimeType = *mimeType
		}
		files = append(files, f)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}
