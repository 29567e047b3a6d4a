package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bragi-editor/bragi/internal/apperr"
	"github.com/bragi-editor/bragi/internal/draftservice"
)

const maxImageBytes = 25 << 20 // 25 MB

// ImageHandler proxies image uploads and deletions to the backend.
type ImageHandler struct {
	svc *draftservice.Service
}

// NewImageHandler creates an image handler over the draft service.
func NewImageHandler(svc *draftservice.Service) *ImageHandler {
	return &ImageHandler{svc: svc}
}

// Upload handles POST /api/images (multipart/form-data, fields
// "articleId" and "file").
//
//	@Summary		Upload an image for a draft
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			articleId	formData	string	true	"Article ID"
//	@Param			file		formData	file	true	"Image file"
//	@Success		201			{object}	ImageUploadResponse
//	@Failure		400			{object}	errResponse
//	@Failure		502			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images [post]
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	articleID := r.FormValue("articleId")
	if articleID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("articleId is required"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		// Pasted images often arrive without a filename.
		filename = uuid.NewString() + ".png"
	}

	url, err := h.svc.UploadImage(r.Context(), articleID, filename, file)
	if err != nil {
		if errors.Is(err, apperr.ErrRemoteDisabled) {
			writeJSON(w, http.StatusBadRequest, errorBody("remote syncing is disabled"))
			return
		}
		slog.Error("image upload failed", slog.String("article_id", articleID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("upload failed"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"image_url": url,
		"size":      header.Size,
	})
}

// Delete handles DELETE /api/images.
//
//	@Summary		Remove an uploaded image from the backend
//	@Tags			images
//	@Accept			json
//	@Param			body	body	DeleteImageRequest	true	"Image to remove"
//	@Success		204		"Image removed"
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images [delete]
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req DeleteImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ArticleID == "" || req.ImageURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("article_id and image_url are required"))
		return
	}

	if err := h.svc.RemoveImage(r.Context(), req.ArticleID, req.ImageURL); err != nil {
		if errors.Is(err, apperr.ErrRemoteDisabled) {
			writeJSON(w, http.StatusBadRequest, errorBody("remote syncing is disabled"))
			return
		}
		slog.Error("image delete failed", slog.String("article_id", req.ArticleID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("delete failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
