package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
)

// UploadResponse is returned after a media upload
type UploadResponse struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
}

// Stats returns catalog counts with the latest talks and papers
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// CreateTalk publishes a talk with its speaker and paper
func (h *Handler) CreateTalk(w http.ResponseWriter, r *http.Request) {
	var req talkonpaper.CreateTalkRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	talk, err := h.service.CreateTalk(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newTalkResponse(talk))
}

// UploadMedia streams the request body to object storage under the key
// given by the path
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, r, http.StatusServiceUnavailable, "uploads_unavailable", "Media uploads are not configured")
		return
	}

	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" || strings.HasSuffix(key, "/") || containsDotDot(key) {
		writeError(w, r, http.StatusBadRequest, "invalid_key", "Invalid object key")
		return
	}

	if r.ContentLength > h.maxUpload {
		writeError(w, r, http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds the size limit")
		return
	}
	body := http.MaxBytesReader(w, r.Body, h.maxUpload)

	contentType := r.Header.Get("Content-Type")
	if err := h.uploader.Upload(r.Context(), key, body, contentType); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds the size limit")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("media uploaded", "key", key, "content_type", contentType)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{Key: key, ContentType: contentType})
}

func containsDotDot(key string) bool {
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
