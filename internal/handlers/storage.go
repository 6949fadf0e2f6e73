package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"luna-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StorageHandler exposes the object store over HTTP
type StorageHandler struct {
	store         storage.ObjectStore
	defaultBucket string
	localDir      string
}

// NewStorageHandler creates a new storage handler. Local paths are resolved
// inside localDir.
func NewStorageHandler(store storage.ObjectStore, defaultBucket, localDir string) *StorageHandler {
	return &StorageHandler{
		store:         store,
		defaultBucket: defaultBucket,
		localDir:      localDir,
	}
}

// UploadRequest represents the request body for an upload
type UploadRequest struct {
	Path   string `json:"path"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// DownloadRequest represents the request body for a download
type DownloadRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Path   string `json:"path"`
}

// CheckResponse is the body of the storage probe
type CheckResponse struct {
	Status  string   `json:"status"`
	Buckets []string `json:"buckets"`
}

func (h *StorageHandler) bucket(requested string) (string, error) {
	if b := strings.TrimSpace(requested); b != "" {
		return b, nil
	}
	if h.defaultBucket == "" {
		return "", errors.New("bucket is required")
	}
	return h.defaultBucket, nil
}

// Check handles GET /test-s3
func (h *StorageHandler) Check(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.store.Check(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Object storage probe failed")
		respondServiceError(w, err, "Object storage probe failed")
		return
	}
	respondJSON(w, http.StatusOK, CheckResponse{Status: "Connection successful!", Buckets: buckets})
}

// Upload handles POST /upload
func (h *StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	bucket, err := h.bucket(req.Bucket)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	localPath, err := storage.ResolveLocalPath(h.localDir, req.Path)
	if err != nil {
		respondServiceError(w, err, "Failed to resolve upload path")
		return
	}

	key := strings.TrimSpace(req.Key)
	if key == "" {
		key = uuid.NewString() + strings.ToLower(filepath.Ext(localPath))
	}

	url, err := h.store.Upload(r.Context(), localPath, bucket, key)
	if err != nil {
		log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Upload failed")
		respondServiceError(w, err, "Upload failed")
		return
	}

	log.Info().Str("bucket", bucket).Str("key", key).Msg("File uploaded")
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Download handles POST /download
func (h *StorageHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	bucket, err := h.bucket(req.Bucket)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		respondError(w, "key is required", http.StatusBadRequest)
		return
	}
	localPath, err := storage.ResolveLocalPath(h.localDir, req.Path)
	if err != nil {
		respondServiceError(w, err, "Failed to resolve download path")
		return
	}

	if err := h.store.Download(r.Context(), bucket, key, localPath); err != nil {
		log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Download failed")
		respondServiceError(w, err, "Download failed")
		return
	}

	log.Info().Str("bucket", bucket).Str("key", key).Msg("File downloaded")
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
